package tui

import (
	"time"

	"github.com/Veraticus/dosewatch/internal/tui/themes"
)

// Config holds TUI configuration.
type Config struct {
	Theme       themes.Theme
	Refresh     time.Duration
	Width       int
	Height      int
	AutoStart   bool
	ShowHelp    bool
	AltScreen   bool
	MouseEvents bool

	bridge *Bridge
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:     themes.Default,
		Refresh:   250 * time.Millisecond,
		Width:     80,
		Height:    24,
		ShowHelp:  true,
		AltScreen: true,
	}
}

// WithTheme sets the TUI theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithRefresh sets how often the dashboard polls the session.
func WithRefresh(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Refresh = d
		}
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithAutoStart starts detection as soon as the dashboard opens.
func WithAutoStart(enabled bool) Option {
	return func(c *Config) {
		c.AutoStart = enabled
	}
}

// WithAltScreen toggles the alternate screen buffer.
func WithAltScreen(enabled bool) Option {
	return func(c *Config) {
		c.AltScreen = enabled
	}
}

// WithBridge delivers the bridge's notices and tones into the dashboard.
func WithBridge(b *Bridge) Option {
	return func(c *Config) {
		c.bridge = b
	}
}
