package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/schedule"
	"github.com/Veraticus/dosewatch/internal/service"
	"github.com/Veraticus/dosewatch/internal/testutil"
)

func day(d, hour, minute int) time.Time {
	return time.Date(2025, 6, d, hour, minute, 0, 0, time.Local)
}

func newTestLedger(t *testing.T) (*Ledger, service.BlobStore) {
	t.Helper()
	store := testutil.SetupTestStore(t)
	l := New(store, schedule.Default())
	require.NoError(t, l.Load(context.Background()))
	return l, store
}

func TestLedger_RecordAccepted(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	outcome, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(10, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAccepted, outcome)

	stats := l.Stats()
	assert.Equal(t, 1, stats.TotalTaken)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 2, stats.TotalScheduled)

	today, ok := l.Day("2025-06-10")
	require.True(t, ok)
	require.True(t, today.Slot(model.DoseMorning).Taken())
	assert.Equal(t, "08:00", *today.Slot(model.DoseMorning).TakenAt)
	assert.Equal(t, model.LabelPillMorning, *today.Slot(model.DoseMorning).ObservedLabel)
	assert.False(t, today.Slot(model.DoseEvening).Taken())
	assert.Equal(t, "20:00", today.Slot(model.DoseEvening).ScheduledTime)

	data, err := store.Get(ctx, service.KeyAdherenceData)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "adherenceLog")
	assert.EqualValues(t, 1, doc["currentStreak"])
	assert.EqualValues(t, 1, doc["totalPillsTaken"])
	assert.EqualValues(t, 2, doc["totalPillsScheduled"])
}

func TestLedger_RecordIsIdempotentPerDay(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(10, 8, 0))
	require.NoError(t, err)
	second, err := l.Record(ctx, model.LabelPillMorning, 0.95, day(10, 8, 30))
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeAccepted, first)
	assert.Equal(t, model.OutcomeAlreadyTaken, second)
	assert.Equal(t, 1, l.Stats().TotalTaken)

	today, _ := l.Day("2025-06-10")
	assert.Equal(t, "08:00", *today.Slot(model.DoseMorning).TakenAt, "first timestamp is never overwritten")
}

func TestLedger_AlreadyTakenBeatsWindow(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(10, 8, 0))
	require.NoError(t, err)

	outcome, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(10, 15, 0))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyTaken, outcome)
}

func TestLedger_NotScheduledDoesNotMutate(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	outcome, err := l.Record(ctx, model.LabelPillEvening, 0.9, day(10, 14, 0))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotScheduled, outcome)
	assert.Equal(t, model.Stats{}, l.Stats())
	assert.Empty(t, l.Days())
	assert.False(t, l.IsTaken(model.DoseEvening, day(10, 14, 0)))

	_, err = store.Get(ctx, service.KeyAdherenceData)
	assert.ErrorIs(t, err, common.ErrNotFound, "nothing is persisted for an off-schedule detection")
}

func TestLedger_Ignored(t *testing.T) {
	l, _ := newTestLedger(t)
	for _, label := range []model.DetectionLabel{model.LabelNoPill, model.LabelMultiplePills} {
		outcome, err := l.Record(context.Background(), label, 0.99, day(10, 8, 0))
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeIgnored, outcome)
	}
	assert.Empty(t, l.Days())
	assert.Equal(t, model.Stats{}, l.Stats())
}

func TestLedger_UnscheduledPillLabel(t *testing.T) {
	l, _ := newTestLedger(t)
	outcome, err := l.Record(context.Background(), model.LabelPillAfternoon, 0.9, day(10, 13, 0))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotScheduled, outcome)
	assert.Empty(t, l.Days())
}

func TestLedger_StreakAcrossDays(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(8, 8, 0))
	require.NoError(t, err)
	_, err = l.Record(ctx, model.LabelPillEvening, 0.9, day(9, 20, 0))
	require.NoError(t, err)
	_, err = l.Record(ctx, model.LabelPillMorning, 0.9, day(10, 7, 5))
	require.NoError(t, err)

	assert.Equal(t, 3, l.Stats().CurrentStreak)
	assert.Equal(t, 3, l.Stats().TotalTaken)
	assert.Equal(t, 6, l.Stats().TotalScheduled)
}

func TestLedger_StreakBreaksOnEmptyStoredDay(t *testing.T) {
	store := testutil.SetupTestStore(t)
	seed := New(store, schedule.Default())
	ctx := context.Background()

	_, err := seed.Record(ctx, model.LabelPillMorning, 0.9, day(8, 8, 0))
	require.NoError(t, err)

	snap := seed.Snapshot()
	empty := model.NewDayLog("2025-06-09", schedule.Default().ScheduledTimes())
	snap.AdherenceLog = append([]*model.DayLog{empty}, snap.AdherenceLog...)
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	testutil.MustPut(t, store, service.KeyAdherenceData, data)

	l := New(store, schedule.Default())
	require.NoError(t, l.Load(ctx))
	_, err = l.Record(ctx, model.LabelPillEvening, 0.9, day(10, 20, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, l.Stats().CurrentStreak)
}

func TestLedger_OffScheduleDetectionMatchesReload(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(8, 8, 0))
	require.NoError(t, err)
	outcome, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(9, 13, 0))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeNotScheduled, outcome)

	restarted := New(store, schedule.Default())
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, l.Stats(), restarted.Stats())
	assert.Len(t, l.Days(), len(restarted.Days()))

	_, err = l.Record(ctx, model.LabelPillEvening, 0.9, day(10, 20, 0))
	require.NoError(t, err)
	_, err = restarted.Record(ctx, model.LabelPillEvening, 0.9, day(10, 20, 0))
	require.NoError(t, err)

	assert.Equal(t, restarted.Stats(), l.Stats())
	assert.Equal(t, 2, l.Stats().CurrentStreak)
	assert.Equal(t, 4, l.Stats().TotalScheduled)
}

func TestLedger_LoadRoundTrip(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(10, 8, 0))
	require.NoError(t, err)

	reloaded := New(store, schedule.Default())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, l.Stats(), reloaded.Stats())
	assert.True(t, reloaded.IsTaken(model.DoseMorning, day(10, 23, 0)))

	outcome, err := reloaded.Record(ctx, model.LabelPillMorning, 0.9, day(10, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyTaken, outcome)
}

func TestLedger_LoadCorrupted(t *testing.T) {
	store := testutil.SetupTestStore(t)
	testutil.MustPut(t, store, service.KeyAdherenceData, []byte("{not json"))

	err := New(store, schedule.Default()).Load(context.Background())
	assert.ErrorIs(t, err, common.ErrDatabaseCorrupted)
}

func TestLedger_Reset(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(10, 8, 0))
	require.NoError(t, err)
	require.NoError(t, l.Reset(ctx))

	assert.Equal(t, model.Stats{}, l.Stats())
	assert.Empty(t, l.Days())
	_, err = store.Get(ctx, service.KeyAdherenceData)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_Week(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, model.LabelPillMorning, 0.9, day(3, 8, 0))
	require.NoError(t, err)
	_, err = l.Record(ctx, model.LabelPillEvening, 0.9, day(9, 20, 0))
	require.NoError(t, err)

	week := l.Week(day(10, 9, 0))
	require.Len(t, week, WeekDays)
	assert.Equal(t, "2025-06-04", week[0].Date)
	assert.Equal(t, "2025-06-10", week[6].Date)
	assert.True(t, week[5].Slot(model.DoseEvening).Taken())
	assert.False(t, week[6].AnyTaken())
	for _, d := range week[:5] {
		assert.False(t, d.AnyTaken(), d.Date)
	}
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockStore) Close() error {
	return nil
}

func TestLedger_PersistFailureKeepsMemoryState(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, service.KeyAdherenceData).Return(nil, common.ErrNotFound)
	store.On("Put", mock.Anything, service.KeyAdherenceData, mock.Anything).Return(errors.New("disk full"))

	l := New(store, schedule.Default())
	require.NoError(t, l.Load(context.Background()))

	outcome, err := l.Record(context.Background(), model.LabelPillMorning, 0.9, day(10, 8, 0))
	assert.Equal(t, model.OutcomeAccepted, outcome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, l.Stats().TotalTaken)
	store.AssertNumberOfCalls(t, "Put", 1)
}
