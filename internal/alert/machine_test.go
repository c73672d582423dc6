package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/testutil"
)

func newMachine() (*Machine, *testutil.FakeClock) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.Local))
	return NewMachine(clock, DefaultLifetimes()), clock
}

func TestMachine_InfoSelfClears(t *testing.T) {
	m, clock := newMachine()

	require.True(t, m.Info("Detected: pill morning"))
	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, model.AlertInfo, got.Kind)
	assert.NotEmpty(t, got.ID)

	clock.Advance(2999 * time.Millisecond)
	_, ok = m.Current()
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = m.Current()
	assert.False(t, ok)
}

func TestMachine_StaleInfoTimerDoesNotClearSuccess(t *testing.T) {
	m, clock := newMachine()

	m.Info("Detected: pill morning")
	clock.Advance(time.Second)
	m.Success("Pill morning recorded")

	clock.Advance(2 * time.Second) // info's original 3s deadline
	got, ok := m.Current()
	require.True(t, ok, "success must survive the superseded info timer")
	assert.Equal(t, model.AlertSuccess, got.Kind)

	clock.Advance(3 * time.Second) // success lifetime reached
	_, ok = m.Current()
	assert.False(t, ok)
}

func TestMachine_InfoDoesNotPreemptSuccessOrWarning(t *testing.T) {
	for _, kind := range []model.AlertKind{model.AlertSuccess, model.AlertWarning} {
		t.Run(string(kind), func(t *testing.T) {
			m, clock := newMachine()
			if kind == model.AlertSuccess {
				m.Success("done")
			} else {
				m.Warning("careful")
			}

			assert.False(t, m.Info("Detected: pill morning"))
			got, _ := m.Current()
			assert.Equal(t, kind, got.Kind)

			clock.Advance(10 * time.Second)
			assert.True(t, m.Info("Detected: pill morning"), "info shows once the alert is gone")
		})
	}
}

func TestMachine_WarningReplacesSuccess(t *testing.T) {
	m, clock := newMachine()
	m.Success("done")
	m.Warning("careful")

	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, model.AlertWarning, got.Kind)

	clock.Advance(4 * time.Second)
	_, ok = m.Current()
	assert.False(t, ok)
	assert.Zero(t, clock.Pending())
}

func TestMachine_OnChange(t *testing.T) {
	m, clock := newMachine()
	var kinds []model.AlertKind
	var cleared int
	m.OnChange(func(a model.AlertState, visible bool) {
		if !visible {
			cleared++
			return
		}
		kinds = append(kinds, a.Kind)
	})

	m.Info("a")
	m.Success("b")
	clock.Advance(5 * time.Second)

	assert.Equal(t, []model.AlertKind{model.AlertInfo, model.AlertSuccess}, kinds)
	assert.Equal(t, 1, cleared)
}

func TestMachine_Clear(t *testing.T) {
	m, clock := newMachine()
	m.Warning("careful")
	m.Clear()

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Zero(t, clock.Pending())
}

func TestMachine_ExpireChecksIdentity(t *testing.T) {
	m, _ := newMachine()
	m.Info("first")
	first, _ := m.Current()
	m.Info("second")

	m.expire(first.ID)
	got, ok := m.Current()
	require.True(t, ok, "a late timer for a replaced alert is a no-op")
	assert.Equal(t, "second", got.Message)

	m.expire(got.ID)
	_, ok = m.Current()
	assert.False(t, ok)
}

func TestMachine_RepeatExtendsWithoutTransition(t *testing.T) {
	m, clock := newMachine()
	var shown int
	m.OnChange(func(_ model.AlertState, visible bool) {
		if visible {
			shown++
		}
	})

	require.True(t, m.Warning("Pill evening is not scheduled right now"))
	first, _ := m.Current()

	clock.Advance(3 * time.Second)
	assert.False(t, m.Warning("Pill evening is not scheduled right now"))
	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, 1, shown)
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(3 * time.Second) // past the first deadline
	_, ok = m.Current()
	assert.True(t, ok, "the repeat pushed the expiry out")

	clock.Advance(time.Second)
	_, ok = m.Current()
	assert.False(t, ok)

	assert.True(t, m.Warning("Pill evening is not scheduled right now"), "an expired alert shows again")
	assert.Equal(t, 2, shown)
}
