package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-valued settings (timers.poll_interval, timers.default_duration,
// telegram.poll_timeout, sheet.busy_timeout) are strings in Go duration
// syntax, e.g. "150s" or "12h". Empty means "use the built-in default".

// ParseDurationField parses one such field. path names the field in error
// messages ("timers.poll_interval").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
