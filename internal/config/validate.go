package config

import (
	"fmt"
	"strings"
)

// Validate checks the invariants the rest of the program assumes. It is also
// installed as the hot-reload validator so a broken edit never reaches
// subscribers.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token: required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(c.Sheet.Driver)) {
	case "", "sqlite":
		if strings.TrimSpace(c.Sheet.Path) == "" {
			return fmt.Errorf("sheet.path: required for sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("sheet.driver: unknown driver %q (want sqlite or memory)", c.Sheet.Driver)
	}
	if _, err := ParseDurationField("sheet.busy_timeout", c.Sheet.BusyTimeout); err != nil {
		return err
	}

	if _, err := ParseDurationField("timers.poll_interval", c.Timers.PollInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("timers.default_duration", c.Timers.DefaultDuration); err != nil {
		return err
	}

	if c.Alerts.RatePerSec < 0 {
		return fmt.Errorf("alerts.rate_per_sec: must be >= 0")
	}
	seen := make(map[int64]struct{}, len(c.Alerts.ChatIDs))
	for _, id := range c.Alerts.ChatIDs {
		if id == 0 {
			return fmt.Errorf("alerts.chat_ids: chat id must be non-zero")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("alerts.chat_ids: duplicate chat id %d", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
