// Package schedule decides whether a detected label is on schedule right now.
package schedule

import (
	"fmt"
	"time"

	"github.com/Veraticus/dosewatch/internal/config"
	"github.com/Veraticus/dosewatch/internal/model"
)

// Window is the acceptance range for one dose type. Hours are inclusive.
type Window struct {
	Dose          model.DoseType
	Label         model.DetectionLabel
	ScheduledTime string
	StartHour     int
	EndHour       int
}

// Contains reports whether t's wall-clock hour falls inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= w.StartHour && h <= w.EndHour
}

// ScheduledAt returns the scheduled clock time of the window on t's day.
func (w Window) ScheduledAt(t time.Time) (time.Time, error) {
	clock, err := time.Parse(model.TakenLayout, w.ScheduledTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid scheduled time %q: %w", w.ScheduledTime, err)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, t.Location()), nil
}

// Verdict is the answer for one label at one instant.
type Verdict struct {
	Dose  model.DoseType
	Valid bool
	// HasDose is false when the label names no scheduled dose at all.
	HasDose bool
}

// Policy maps labels to dose types and checks their windows. It holds no
// mutable state.
type Policy struct {
	byLabel map[model.DetectionLabel]Window
	windows []Window
}

// NewPolicy builds a policy from the given windows, in order.
func NewPolicy(windows []Window) *Policy {
	p := &Policy{
		byLabel: make(map[model.DetectionLabel]Window, len(windows)),
		windows: make([]Window, len(windows)),
	}
	copy(p.windows, windows)
	for _, w := range windows {
		p.byLabel[w.Label] = w
	}
	return p
}

// FromConfig builds a policy from the configured schedule.
func FromConfig(cfg []config.DoseWindow) *Policy {
	windows := make([]Window, 0, len(cfg))
	for _, w := range cfg {
		windows = append(windows, Window{
			Dose:          w.Dose,
			Label:         w.Label,
			ScheduledTime: w.ScheduledTime,
			StartHour:     w.StartHour,
			EndHour:       w.EndHour,
		})
	}
	return NewPolicy(windows)
}

// Default returns the morning [7,9] and evening [19,21] schedule.
func Default() *Policy {
	return NewPolicy([]Window{
		{Dose: model.DoseMorning, Label: model.LabelPillMorning, ScheduledTime: "08:00", StartHour: 7, EndHour: 9},
		{Dose: model.DoseEvening, Label: model.LabelPillEvening, ScheduledTime: "20:00", StartHour: 19, EndHour: 21},
	})
}

// DoseFor returns the dose type a label is tagged with.
func (p *Policy) DoseFor(label model.DetectionLabel) (model.DoseType, bool) {
	w, ok := p.byLabel[label]
	return w.Dose, ok
}

// IsValidNow checks label against its window at now.
func (p *Policy) IsValidNow(label model.DetectionLabel, now time.Time) Verdict {
	w, ok := p.byLabel[label]
	if !ok {
		return Verdict{}
	}
	return Verdict{Dose: w.Dose, HasDose: true, Valid: w.Contains(now)}
}

// Windows returns the configured windows in schedule order.
func (p *Policy) Windows() []Window {
	out := make([]Window, len(p.windows))
	copy(out, p.windows)
	return out
}

// ScheduledTimes maps each dose type to its scheduled clock time.
func (p *Policy) ScheduledTimes() map[model.DoseType]string {
	out := make(map[model.DoseType]string, len(p.windows))
	for _, w := range p.windows {
		out[w.Dose] = w.ScheduledTime
	}
	return out
}
