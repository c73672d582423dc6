// Package ledger keeps the authoritative per-day record of doses taken.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/schedule"
	"github.com/Veraticus/dosewatch/internal/service"
)

// WeekDays is the length of the rolling history view.
const WeekDays = 7

// Ledger owns every DayLog and the derived Stats. All mutation goes through
// Record and Reset; readers get copies.
type Ledger struct {
	store  service.BlobStore
	policy *schedule.Policy
	days   map[string]*model.DayLog
	stats  model.Stats
	mu     sync.RWMutex
}

// New creates an empty ledger backed by store.
func New(store service.BlobStore, policy *schedule.Policy) *Ledger {
	return &Ledger{
		store:  store,
		policy: policy,
		days:   make(map[string]*model.DayLog),
	}
}

// Load replaces the in-memory state with the persisted snapshot. A missing
// snapshot leaves the ledger empty.
func (l *Ledger) Load(ctx context.Context) error {
	data, err := l.store.Get(ctx, service.KeyAdherenceData)
	if errors.Is(err, common.ErrNotFound) {
		l.mu.Lock()
		l.days = make(map[string]*model.DayLog)
		l.stats = model.Stats{}
		l.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read adherence data: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: adherence data: %v", common.ErrDatabaseCorrupted, err)
	}

	days := make(map[string]*model.DayLog, len(snap.AdherenceLog))
	for _, day := range snap.AdherenceLog {
		if day == nil {
			continue
		}
		if _, dup := days[day.Date]; dup {
			return fmt.Errorf("%w: duplicate day %s", common.ErrDatabaseCorrupted, day.Date)
		}
		days[day.Date] = day
	}

	l.mu.Lock()
	l.days = days
	l.stats = snap.Stats
	l.mu.Unlock()

	slog.Debug("Loaded adherence ledger",
		"days", len(days),
		"streak", snap.CurrentStreak,
		"total_taken", snap.TotalTaken)
	return nil
}

// Record offers a forwarded detection to the ledger.
func (l *Ledger) Record(ctx context.Context, label model.DetectionLabel, confidence float64, now time.Time) (model.RecordOutcome, error) {
	if label.IsIgnored() {
		return model.OutcomeIgnored, nil
	}

	dose, ok := l.policy.DoseFor(label)
	if !ok {
		slog.Debug("Label has no scheduled dose", "label", label)
		return model.OutcomeNotScheduled, nil
	}

	date := now.Format(model.DateLayout)

	l.mu.Lock()
	if day, ok := l.days[date]; ok {
		if slot := day.Slot(dose); slot != nil && slot.Taken() {
			l.mu.Unlock()
			slog.Debug("Dose already recorded", "dose", dose, "date", date, "taken_at", *slot.TakenAt)
			return model.OutcomeAlreadyTaken, nil
		}
	}

	if !l.policy.IsValidNow(label, now).Valid {
		l.mu.Unlock()
		slog.Info("Dose detected outside its window", "dose", dose, "label", label, "hour", now.Hour())
		return model.OutcomeNotScheduled, nil
	}

	day := l.resolveDayLocked(date)
	slot := day.Slot(dose)

	taken := now.Format(model.TakenLayout)
	observed := label
	slot.TakenAt = &taken
	slot.ObservedLabel = &observed
	l.stats.TotalTaken++
	l.stats.CurrentStreak = Streak(l.sortedDaysLocked())
	snap := l.snapshotLocked()
	l.mu.Unlock()

	slog.Info("Dose recorded",
		"dose", dose,
		"date", date,
		"taken_at", taken,
		"confidence", confidence,
		"streak", snap.CurrentStreak)

	if err := l.persist(ctx, snap); err != nil {
		return model.OutcomeAccepted, err
	}
	return model.OutcomeAccepted, nil
}

// resolveDayLocked returns the log for date, creating it with every
// scheduled slot. Only an accepted dose may call it.
func (l *Ledger) resolveDayLocked(date string) *model.DayLog {
	scheduled := l.policy.ScheduledTimes()

	day, ok := l.days[date]
	if !ok {
		day = model.NewDayLog(date, scheduled)
		l.days[date] = day
		l.stats.TotalScheduled += len(scheduled)
		return day
	}

	// Slots added to the schedule after the day was created.
	for dose, at := range scheduled {
		if day.Slot(dose) == nil {
			if day.Doses == nil {
				day.Doses = make(map[model.DoseType]*model.DoseRecord)
			}
			day.Doses[dose] = &model.DoseRecord{ScheduledTime: at}
		}
	}
	return day
}

func (l *Ledger) persist(ctx context.Context, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode adherence data: %w", err)
	}
	if err := l.store.Put(ctx, service.KeyAdherenceData, data); err != nil {
		return fmt.Errorf("failed to persist adherence data: %w", err)
	}
	return nil
}

// Reset deletes the persisted snapshot and zeroes the ledger.
func (l *Ledger) Reset(ctx context.Context) error {
	if err := l.store.Delete(ctx, service.KeyAdherenceData); err != nil {
		return fmt.Errorf("failed to clear adherence data: %w", err)
	}
	l.mu.Lock()
	l.days = make(map[string]*model.DayLog)
	l.stats = model.Stats{}
	l.mu.Unlock()
	return nil
}

// Stats returns the cached summary.
func (l *Ledger) Stats() model.Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// Day returns a copy of the log for date.
func (l *Ledger) Day(date string) (*model.DayLog, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	day, ok := l.days[date]
	return day.Clone(), ok
}

// IsTaken reports whether dose was recorded on now's calendar day.
func (l *Ledger) IsTaken(dose model.DoseType, now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	day, ok := l.days[now.Format(model.DateLayout)]
	if !ok {
		return false
	}
	slot := day.Slot(dose)
	return slot != nil && slot.Taken()
}

// Days returns copies of every log, oldest first.
func (l *Ledger) Days() []*model.DayLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	days := l.sortedDaysLocked()
	out := make([]*model.DayLog, len(days))
	for i := range days {
		out[len(days)-1-i] = days[i].Clone()
	}
	return out
}

// Week returns the rolling seven day view ending on now's day, oldest first.
// Days without a log are returned empty with every scheduled slot.
func (l *Ledger) Week(now time.Time) []*model.DayLog {
	l.mu.RLock()
	defer l.mu.RUnlock()

	scheduled := l.policy.ScheduledTimes()
	week := make([]*model.DayLog, 0, WeekDays)
	y, m, d := now.Date()
	for offset := WeekDays - 1; offset >= 0; offset-- {
		date := time.Date(y, m, d-offset, 12, 0, 0, 0, now.Location()).Format(model.DateLayout)
		if day, ok := l.days[date]; ok {
			week = append(week, day.Clone())
			continue
		}
		week = append(week, model.NewDayLog(date, scheduled))
	}
	return week
}

// Snapshot returns the document that would be persisted.
func (l *Ledger) Snapshot() model.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() model.Snapshot {
	days := l.sortedDaysLocked()
	logs := make([]*model.DayLog, len(days))
	for i := range days {
		logs[len(days)-1-i] = days[i].Clone()
	}
	return model.Snapshot{AdherenceLog: logs, Stats: l.stats}
}

// sortedDaysLocked returns the live logs most recent first.
func (l *Ledger) sortedDaysLocked() []*model.DayLog {
	days := make([]*model.DayLog, 0, len(l.days))
	for _, day := range l.days {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date > days[j].Date })
	return days
}
