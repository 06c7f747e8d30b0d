package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Sheet    SheetConfig    `json:"sheet"`
	Timers   TimersConfig   `json:"timers"`
	Alerts   AlertsConfig   `json:"alerts"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SheetConfig selects the tabular store backend holding the timer and
// mention tables.
//
// Driver values:
//   - "sqlite": local SQLite database file (default)
//   - "memory": in-process table, lost on restart (tests/dev only)
type SheetConfig struct {
	Driver       string `json:"driver"`
	Path         string `json:"path"`
	TimerTable   string `json:"timer_table,omitempty"`   // default "timers"
	MentionTable string `json:"mention_table,omitempty"` // default "mentions"
	BusyTimeout  string `json:"busy_timeout,omitempty"`  // Go duration string (sqlite)
}

// TimersConfig controls the countdown poller.
//
// All durations are Go duration strings (e.g. "150s", "12h").
type TimersConfig struct {
	PollInterval    string `json:"poll_interval,omitempty"`    // default "150s"
	DefaultDuration string `json:"default_duration,omitempty"` // default "12h"
}

// AlertsConfig lists the chat sinks threshold notifications are broadcast to.
//
// An empty ChatIDs list is accepted (alerts become a logged no-op); it is
// warned about once at startup.
type AlertsConfig struct {
	ChatIDs    []int64 `json:"chat_ids"`
	RatePerSec int     `json:"rate_per_sec,omitempty"` // default 3
	GroupLabel string  `json:"group_label,omitempty"`  // registry row label, default "steel"
}
