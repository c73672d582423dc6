package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayLog_JSONLayout(t *testing.T) {
	taken := "08:02"
	label := LabelPillMorning
	day := NewDayLog("2025-03-04", map[DoseType]string{
		DoseMorning: "08:00",
		DoseEvening: "20:00",
	})
	day.Slot(DoseMorning).TakenAt = &taken
	day.Slot(DoseMorning).ObservedLabel = &label

	data, err := json.Marshal(day)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2025-03-04", raw["date"])
	assert.Contains(t, raw, "morning")
	assert.Contains(t, raw, "evening")

	evening := raw["evening"].(map[string]any)
	assert.Nil(t, evening["takenTimestamp"], "untaken slot serializes a null timestamp")

	var decoded DayLog
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Slot(DoseMorning).Taken())
	assert.False(t, decoded.Slot(DoseEvening).Taken())
	assert.Equal(t, LabelPillMorning, *decoded.Slot(DoseMorning).ObservedLabel)
}

func TestDayLog_UnmarshalRejectsBadDate(t *testing.T) {
	var day DayLog
	err := json.Unmarshal([]byte(`{"date":"03/04/2025","morning":{"scheduledTime":"08:00","takenTimestamp":null}}`), &day)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"morning":{}}`), &day)
	assert.Error(t, err)
}

func TestDayLog_CloneIsIndependent(t *testing.T) {
	day := NewDayLog("2025-03-04", map[DoseType]string{DoseMorning: "08:00"})
	cp := day.Clone()

	taken := "08:00"
	cp.Slot(DoseMorning).TakenAt = &taken

	assert.False(t, day.AnyTaken())
	assert.True(t, cp.AnyTaken())
}

func TestDetectionLabel(t *testing.T) {
	assert.True(t, LabelPillMorning.IsCanonical())
	assert.False(t, DetectionLabel("Pill Morning").IsCanonical())
	assert.False(t, DetectionLabel("pill__morning").IsCanonical())
	assert.True(t, LabelNoPill.IsIgnored())
	assert.True(t, LabelMultiplePills.IsIgnored())
	assert.False(t, LabelPillEvening.IsIgnored())
	assert.Equal(t, "pill evening", LabelPillEvening.Normalized())
}

func TestStats_AdherenceRate(t *testing.T) {
	assert.Zero(t, Stats{}.AdherenceRate())
	assert.InDelta(t, 0.75, Stats{TotalTaken: 3, TotalScheduled: 4}.AdherenceRate(), 1e-9)
}
