// Package model defines the core domain models used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DoseType identifies a scheduled medication slot.
type DoseType string

// Dose type constants.
const (
	DoseMorning DoseType = "morning"
	DoseEvening DoseType = "evening"
)

// DateLayout is the ISO calendar date format used to key day logs.
const DateLayout = "2006-01-02"

// TakenLayout is the human readable, minute precision format for taken timestamps.
const TakenLayout = "15:04"

// DoseRecord tracks one dose slot on one calendar day.
type DoseRecord struct {
	TakenAt       *string         `json:"takenTimestamp"`
	ObservedLabel *DetectionLabel `json:"observedLabel,omitempty"`
	ScheduledTime string          `json:"scheduledTime"`
}

// Taken reports whether the slot has a recorded dose.
func (r DoseRecord) Taken() bool {
	return r.TakenAt != nil
}

// DayLog holds every dose slot for a single calendar day.
type DayLog struct {
	Doses map[DoseType]*DoseRecord
	Date  string
}

// NewDayLog creates an empty day log with a slot per dose type.
func NewDayLog(date string, scheduled map[DoseType]string) *DayLog {
	day := &DayLog{
		Date:  date,
		Doses: make(map[DoseType]*DoseRecord, len(scheduled)),
	}
	for dose, at := range scheduled {
		day.Doses[dose] = &DoseRecord{ScheduledTime: at}
	}
	return day
}

// Slot returns the record for a dose type, or nil when the day has no such slot.
func (d *DayLog) Slot(dose DoseType) *DoseRecord {
	if d == nil || d.Doses == nil {
		return nil
	}
	return d.Doses[dose]
}

// AnyTaken reports whether at least one slot of the day was taken.
func (d *DayLog) AnyTaken() bool {
	if d == nil {
		return false
	}
	for _, rec := range d.Doses {
		if rec != nil && rec.Taken() {
			return true
		}
	}
	return false
}

// TakenCount returns how many slots were taken on the day.
func (d *DayLog) TakenCount() int {
	if d == nil {
		return 0
	}
	count := 0
	for _, rec := range d.Doses {
		if rec != nil && rec.Taken() {
			count++
		}
	}
	return count
}

// Clone returns a deep copy that shares nothing with the receiver.
func (d *DayLog) Clone() *DayLog {
	if d == nil {
		return nil
	}
	out := &DayLog{Date: d.Date, Doses: make(map[DoseType]*DoseRecord, len(d.Doses))}
	for dose, rec := range d.Doses {
		if rec == nil {
			continue
		}
		cp := *rec
		if rec.TakenAt != nil {
			taken := *rec.TakenAt
			cp.TakenAt = &taken
		}
		if rec.ObservedLabel != nil {
			label := *rec.ObservedLabel
			cp.ObservedLabel = &label
		}
		out.Doses[dose] = &cp
	}
	return out
}

// Time parses the day's date in the given location.
func (d *DayLog) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, d.Date, loc)
}

// MarshalJSON writes the slots inline next to the date, e.g.
// {"date":"2025-01-02","morning":{...},"evening":{...}}.
func (d DayLog) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Doses)+1)
	flat["date"] = d.Date
	for dose, rec := range d.Doses {
		flat[string(dose)] = rec
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the inline slot layout written by MarshalJSON.
func (d *DayLog) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dateRaw, ok := raw["date"]
	if !ok {
		return fmt.Errorf("day log missing date")
	}
	if err := json.Unmarshal(dateRaw, &d.Date); err != nil {
		return fmt.Errorf("failed to parse day log date: %w", err)
	}
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return fmt.Errorf("invalid day log date %q: %w", d.Date, err)
	}
	d.Doses = make(map[DoseType]*DoseRecord, len(raw)-1)
	for key, value := range raw {
		if key == "date" {
			continue
		}
		var rec DoseRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("failed to parse %s slot: %w", key, err)
		}
		d.Doses[DoseType(key)] = &rec
	}
	return nil
}

// SortDaysDescending orders day logs most recent first.
func SortDaysDescending(days []*DayLog) {
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date > days[j].Date
	})
}
