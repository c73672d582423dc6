package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dosewatch/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 10, hour, minute, 0, 0, time.Local)
}

func TestPolicy_IsValidNow(t *testing.T) {
	p := Default()

	tests := []struct {
		name    string
		label   model.DetectionLabel
		when    time.Time
		valid   bool
		hasDose bool
		dose    model.DoseType
	}{
		{"morning at 8", model.LabelPillMorning, at(8, 0), true, true, model.DoseMorning},
		{"morning at 12", model.LabelPillMorning, at(12, 0), false, true, model.DoseMorning},
		{"morning window start", model.LabelPillMorning, at(7, 0), true, true, model.DoseMorning},
		{"morning window end inclusive", model.LabelPillMorning, at(9, 59), true, true, model.DoseMorning},
		{"morning just after", model.LabelPillMorning, at(10, 0), false, true, model.DoseMorning},
		{"evening at 14", model.LabelPillEvening, at(14, 0), false, true, model.DoseEvening},
		{"evening at 21", model.LabelPillEvening, at(21, 30), true, true, model.DoseEvening},
		{"no pill", model.LabelNoPill, at(8, 0), false, false, ""},
		{"multiple pills", model.LabelMultiplePills, at(20, 0), false, false, ""},
		{"afternoon not wired", model.LabelPillAfternoon, at(13, 0), false, false, ""},
		{"unknown", model.DetectionLabel("vitamin_c"), at(8, 0), false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.IsValidNow(tt.label, tt.when)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.hasDose, v.HasDose)
			assert.Equal(t, tt.dose, v.Dose)
		})
	}
}

func TestPolicy_NoPillAtEveryHour(t *testing.T) {
	p := Default()
	for h := 0; h < 24; h++ {
		v := p.IsValidNow(model.LabelNoPill, at(h, 0))
		assert.False(t, v.Valid, "hour %d", h)
		assert.False(t, v.HasDose, "hour %d", h)
	}
}

func TestWindow_ScheduledAt(t *testing.T) {
	w := Default().Windows()[1]
	got, err := w.ScheduledAt(at(3, 12))
	require.NoError(t, err)
	assert.Equal(t, at(20, 0), got)

	_, err = Window{ScheduledTime: "late"}.ScheduledAt(at(3, 12))
	assert.Error(t, err)
}

func TestPolicy_ScheduledTimes(t *testing.T) {
	assert.Equal(t, map[model.DoseType]string{
		model.DoseMorning: "08:00",
		model.DoseEvening: "20:00",
	}, Default().ScheduledTimes())
}
