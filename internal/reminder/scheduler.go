// Package reminder nags about doses that are still untaken shortly after
// their scheduled time.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/schedule"
	"github.com/Veraticus/dosewatch/internal/service"
)

// Defaults for the sweep cadence and how long after the scheduled time a
// reminder goes out.
const (
	DefaultInterval = time.Minute
	DefaultGrace    = 15 * time.Minute
)

const reminderTitle = "Medication reminder"

// TakenChecker reports whether a dose was recorded on a day.
type TakenChecker interface {
	IsTaken(dose model.DoseType, now time.Time) bool
}

// Scheduler fires at most one reminder per day and dose.
type Scheduler struct {
	clock    service.Clock
	notifier service.Notifier
	taken    TakenChecker
	policy   *schedule.Policy
	fired    map[string]bool
	refresh  func(context.Context) error
	interval time.Duration
	grace    time.Duration
	mu       sync.Mutex
}

// NewScheduler creates a scheduler. Zero durations select the defaults.
func NewScheduler(policy *schedule.Policy, taken TakenChecker, notifier service.Notifier, clock service.Clock, interval, grace time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Scheduler{
		clock:    clock,
		notifier: notifier,
		taken:    taken,
		policy:   policy,
		fired:    make(map[string]bool),
		interval: interval,
		grace:    grace,
	}
}

// WithRefresh makes every due sweep call refresh before checking doses, so
// records written by another process sharing the store are seen.
func (s *Scheduler) WithRefresh(refresh func(context.Context) error) *Scheduler {
	s.refresh = refresh
	return s
}

// Sweep checks every window once at now and returns how many reminders
// were sent. A minute that is never swept never fires.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) int {
	scheduledMinute := now.Add(-s.grace)
	hhmm := scheduledMinute.Format(model.TakenLayout)

	sent := 0
	refreshed := false
	for _, w := range s.policy.Windows() {
		if w.ScheduledTime != hhmm {
			continue
		}
		if s.refresh != nil && !refreshed {
			refreshed = true
			if err := s.refresh(ctx); err != nil {
				slog.Warn("Failed to refresh adherence history", "error", err)
			}
		}
		if s.taken.IsTaken(w.Dose, scheduledMinute) {
			continue
		}

		key := scheduledMinute.Format(model.DateLayout) + "/" + string(w.Dose)
		if !s.claim(key) {
			continue
		}

		body := fmt.Sprintf("Your %s dose was due at %s and has not been recorded.", w.Dose, w.ScheduledTime)
		if err := s.notifier.Notify(ctx, reminderTitle, body); err != nil {
			slog.Warn("Failed to send reminder", "dose", w.Dose, "error", err)
		} else {
			slog.Info("Sent reminder", "dose", w.Dose, "scheduled", w.ScheduledTime)
		}
		sent++
	}
	return sent
}

func (s *Scheduler) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired[key] {
		return false
	}
	s.fired[key] = true
	return true
}

// Run sweeps on every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Debug("Reminder loop started", "interval", s.interval, "grace", s.grace)
	s.Sweep(ctx, s.clock.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx, s.clock.Now())
		}
	}
}
