// Package notify delivers reminders and alerts outside the dashboard.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/service"
)

// Terminal writes notifications to a terminal.
type Terminal struct {
	w  io.Writer
	mu sync.Mutex
}

// NewTerminal creates a terminal notifier; nil selects stdout.
func NewTerminal(w io.Writer) *Terminal {
	if w == nil {
		w = os.Stdout
	}
	return &Terminal{w: w}
}

// Notify prints the notification with a bell.
func (t *Terminal) Notify(_ context.Context, title, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := cli.FormatNotification(title, body)
	if _, err := fmt.Fprintln(t.w, "\a"+line); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to several notifiers.
type Multi struct {
	notifiers []service.Notifier
}

// NewMulti creates a fan-out over notifiers, skipping nil entries.
func NewMulti(notifiers ...service.Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify delivers to every notifier and joins their errors.
func (m *Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, title, body); err != nil {
			slog.Debug("Notifier failed", "title", title, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Gated drops notifications while disabled.
type Gated struct {
	next    service.Notifier
	enabled bool
}

// NewGated wraps next.
func NewGated(next service.Notifier, enabled bool) *Gated {
	return &Gated{next: next, enabled: enabled}
}

// Notify forwards when enabled.
func (g *Gated) Notify(ctx context.Context, title, body string) error {
	if !g.enabled {
		slog.Debug("Notifications disabled, dropping", "title", title)
		return nil
	}
	return g.next.Notify(ctx, title, body)
}
