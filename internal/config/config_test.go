package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  poll_timeout: "10s"
logging:
  level: debug
  console: true
sheet:
  driver: sqlite
  path: /tmp/steel.db
timers:
  poll_interval: "150s"
  default_duration: "12h"
alerts:
  chat_ids: [-1001, -1002]
  rate_per_sec: 3
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", sampleYAML)

	m := NewManager(p)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if got := len(cfg.Alerts.ChatIDs); got != 2 {
		t.Fatalf("chat_ids len = %d, want 2", got)
	}
	if cfg.Timers.PollInterval != "150s" {
		t.Fatalf("poll_interval = %q", cfg.Timers.PollInterval)
	}
	if m.Get() != cfg {
		t.Fatal("Get() did not return committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", sampleYAML+"\nbogus: 1\n")

	m := NewManager(p)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"telegram":{"token":"t","owner_user_ids":[],"poll_timeout":""},"logging":{"level":"info","console":false,"file":{"enabled":false,"path":""}},"sheet":{"driver":"memory","path":""},"timers":{},"alerts":{"chat_ids":[]}}`)

	m := NewManager(p)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Sheet.Driver != "memory" {
		t.Fatalf("driver = %q", cfg.Sheet.Driver)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t"},
			Sheet:    SheetConfig{Driver: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "ok minimal", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = " " }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Sheet = SheetConfig{Driver: "sqlite"} }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Sheet.Driver = "gsheet" }, wantErr: true},
		{name: "bad poll interval", mutate: func(c *Config) { c.Timers.PollInterval = "soon" }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.Alerts.RatePerSec = -1 }, wantErr: true},
		{name: "zero chat id", mutate: func(c *Config) { c.Alerts.ChatIDs = []int64{0} }, wantErr: true},
		{name: "duplicate chat id", mutate: func(c *Config) { c.Alerts.ChatIDs = []int64{5, 5} }, wantErr: true},
		{name: "empty chat ids ok", mutate: func(c *Config) { c.Alerts.ChatIDs = nil }},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("timers.poll_interval", "", 150*time.Second)
	if err != nil || d != 150*time.Second {
		t.Fatalf("got (%v, %v), want (150s, nil)", d, err)
	}
	d, err = ParseDurationOrDefault("timers.poll_interval", "90s", 150*time.Second)
	if err != nil || d != 90*time.Second {
		t.Fatalf("got (%v, %v), want (90s, nil)", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-5s", time.Second); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestSubscribePublishDropOldest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	a := &Config{}
	b := &Config{}
	m.publish(a)
	m.publish(b) // buffer full: oldest dropped, newest delivered

	select {
	case got := <-ch:
		if got != b {
			t.Fatal("expected newest config after drop-oldest")
		}
	default:
		t.Fatal("expected a buffered config")
	}
}
