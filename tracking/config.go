/*
config.go - Recognized engine configuration

PURPOSE:
  One explicit configuration value threaded through the engine and the
  transport boundary. Admin authorization in particular checks against
  Config.AdminIDs passed in, never a module-level set.
*/
package tracking

import (
	"fmt"
	"time"

	"github.com/warp/readiness-engine/window"
)

const (
	DefaultIntervalDays = 10
	DefaultReminderHour = 9
	DefaultTimezone     = "Asia/Singapore"
)

// Config carries the recognized engine options. Field names match the
// configuration surface (yaml keys / env bindings in cmd/server).
type Config struct {
	IntervalDays    int         `mapstructure:"interval_days"`
	WindowMode      window.Mode `mapstructure:"window_mode"`
	FixedLengthDays int         `mapstructure:"fixed_length_days"`
	Timezone        string      `mapstructure:"timezone"`
	AdminIDs        []int64     `mapstructure:"admin_ids"`
	RemindOverdue   bool        `mapstructure:"remind_overdue"`
	ReminderHour    int         `mapstructure:"reminder_hour"`
}

// DefaultConfig returns the canonical defaults: 100-day windows, reminders
// every 10 days anchored at the window start, overdue reminders on.
func DefaultConfig() Config {
	return Config{
		IntervalDays:    DefaultIntervalDays,
		WindowMode:      window.ModeFixedLength,
		FixedLengthDays: window.DefaultFixedLengthDays,
		Timezone:        DefaultTimezone,
		RemindOverdue:   true,
		ReminderHour:    DefaultReminderHour,
	}
}

// Validate checks option ranges and the timezone name.
func (c Config) Validate() error {
	if c.IntervalDays <= 0 {
		return &ValidationError{Field: "interval_days", Message: "must be positive"}
	}
	if c.WindowMode != window.ModeFixedLength && c.WindowMode != window.ModeFullYear {
		return &ValidationError{Field: "window_mode", Message: fmt.Sprintf("unknown mode %q", c.WindowMode)}
	}
	if c.WindowMode == window.ModeFixedLength && c.FixedLengthDays <= 0 {
		return &ValidationError{Field: "fixed_length_days", Message: "must be positive"}
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return &ValidationError{Field: "reminder_hour", Message: "must be 0..23"}
	}
	if _, err := c.Location(); err != nil {
		return &ValidationError{Field: "timezone", Message: err.Error()}
	}
	return nil
}

// Location resolves the configured IANA timezone.
func (c Config) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	return time.LoadLocation(name)
}

// IsAdmin reports whether the external identity is on the allow-list.
func (c Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}
