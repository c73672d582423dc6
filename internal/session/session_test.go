package session

import (
	"context"
	"errors"
	"io/fs"
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

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, url string) (service.Classifier, error) {
	args := m.Called(ctx, url)
	cls, _ := args.Get(0).(service.Classifier)
	return cls, args.Error(1)
}

// fixedClassifier always predicts the same label.
type fixedClassifier struct {
	label      model.DetectionLabel
	confidence float64
}

func (c fixedClassifier) Predict(context.Context, model.Frame) ([]model.Prediction, error) {
	return []model.Prediction{
		{Label: model.LabelNoPill, Confidence: 1 - c.confidence},
		{Label: c.label, Confidence: c.confidence},
	}, nil
}

func (c fixedClassifier) Labels() []model.DetectionLabel {
	return []model.DetectionLabel{model.LabelNoPill, c.label}
}

const sourceURL = "http://models.local/pillbox/manifest.json"

type harness struct {
	session  *Session
	store    service.BlobStore
	camera   *testutil.StaticFrames
	clock    *testutil.FakeClock
	tone     *testutil.CountingTone
	notifier *testutil.RecordingNotifier
	loader   *mockLoader
}

func newHarness(t *testing.T, now time.Time, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		store:    testutil.SetupTestStore(t),
		camera:   &testutil.StaticFrames{},
		clock:    testutil.NewFakeClock(now),
		tone:     &testutil.CountingTone{},
		notifier: &testutil.RecordingNotifier{},
		loader:   &mockLoader{},
	}
	opts := Options{
		Store:          h.store,
		Loader:         h.loader,
		Camera:         h.camera,
		Notifier:       h.notifier,
		Tone:           h.tone,
		Clock:          h.clock,
		Policy:         schedule.Default(),
		Threshold:      0.75,
		SampleInterval: 2 * time.Millisecond,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	h.session = s
	t.Cleanup(func() { _ = s.Close() })
	return h
}

func (h *harness) useClassifier(t *testing.T, cls service.Classifier) {
	t.Helper()
	h.loader.On("Load", mock.Anything, sourceURL).Return(cls, nil).Once()
	require.NoError(t, h.session.SetClassifierSource(context.Background(), sourceURL))
}

func at(hour int) time.Time {
	return time.Date(2025, 6, 10, hour, 0, 0, 0, time.Local)
}

func TestSession_MorningDoseAccepted(t *testing.T) {
	h := newHarness(t, at(8))
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.9})

	require.NoError(t, h.session.StartDetection(context.Background()))
	require.Eventually(t, func() bool { return h.session.Stats().TotalTaken == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.session.SamplerStats().Evaluated >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, h.session.StopDetection())

	stats := h.session.Stats()
	assert.Equal(t, 1, stats.TotalTaken)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 1, h.tone.Plays(), "later ticks are already taken")

	a, ok := h.session.Alert()
	require.True(t, ok)
	assert.Equal(t, model.AlertSuccess, a.Kind)

	last, ok := h.session.LastDetection()
	require.True(t, ok)
	assert.Equal(t, model.LabelPillMorning, last.Winner.Label)
	assert.True(t, last.Overlay.OnSchedule)

	_, err := h.store.Get(context.Background(), service.KeyAdherenceData)
	assert.NoError(t, err)
}

func TestSession_EveningPillAtTwoPMWarns(t *testing.T) {
	h := newHarness(t, at(14))
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillEvening, confidence: 0.9})

	require.NoError(t, h.session.StartDetection(context.Background()))
	require.Eventually(t, func() bool {
		a, ok := h.session.Alert()
		return ok && a.Kind == model.AlertWarning
	}, time.Second, time.Millisecond)
	require.NoError(t, h.session.StopDetection())

	assert.Equal(t, model.Stats{}, h.session.Stats())
	assert.Zero(t, h.tone.Plays())
	_, err := h.store.Get(context.Background(), service.KeyAdherenceData)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSession_ThresholdNeverMutates(t *testing.T) {
	h := newHarness(t, at(8))
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.75})

	require.NoError(t, h.session.StartDetection(context.Background()))
	require.Eventually(t, func() bool { return h.session.SamplerStats().Evaluated >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, h.session.StopDetection())

	assert.Equal(t, model.Stats{}, h.session.Stats())
	_, visible := h.session.Alert()
	assert.False(t, visible)

	last, ok := h.session.LastDetection()
	require.True(t, ok)
	assert.False(t, last.Forward)
	assert.True(t, last.Overlay.Visible)
}

func TestSession_Offer(t *testing.T) {
	h := newHarness(t, at(8))
	ctx := context.Background()
	require.NoError(t, h.session.Open(ctx))

	assert.Equal(t, model.OutcomeAccepted, h.session.Offer(ctx, model.LabelPillMorning, 0.9, at(8)))
	assert.Equal(t, model.OutcomeAlreadyTaken, h.session.Offer(ctx, model.LabelPillMorning, 0.9, at(9)))
	assert.Equal(t, model.OutcomeIgnored, h.session.Offer(ctx, model.LabelMultiplePills, 0.9, at(9)))
	assert.Equal(t, 1, h.tone.Plays())

	a, ok := h.session.Alert()
	require.True(t, ok)
	assert.Equal(t, model.AlertSuccess, a.Kind, "info never pre-empts success")
}

func TestSession_StartRequiresClassifier(t *testing.T) {
	h := newHarness(t, at(8))
	require.NoError(t, h.session.Open(context.Background()))

	err := h.session.StartDetection(context.Background())
	assert.ErrorIs(t, err, common.ErrDetectionUnavailable)
	assert.False(t, h.camera.IsOpen())
}

func TestSession_StartTwice(t *testing.T) {
	h := newHarness(t, at(8))
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.1})

	require.NoError(t, h.session.StartDetection(context.Background()))
	assert.ErrorIs(t, h.session.StartDetection(context.Background()), common.ErrDetectionActive)
	require.NoError(t, h.session.StopDetection())
	assert.Equal(t, 1, h.camera.Closes())
}

func TestSession_CameraDeniedSetsBanner(t *testing.T) {
	h := newHarness(t, at(8))
	h.camera.OpenErr = &common.CameraAccessError{Device: "/dev/video0", Err: fs.ErrPermission, PermissionDenied: true}
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.9})

	err := h.session.StartDetection(context.Background())
	var camErr *common.CameraAccessError
	require.True(t, errors.As(err, &camErr))
	assert.Contains(t, h.session.Banner(), "permission denied")
	assert.False(t, h.session.Active())
}

func TestSession_StopReleasesCamera(t *testing.T) {
	h := newHarness(t, at(8))
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.1})

	require.NoError(t, h.session.StartDetection(context.Background()))
	assert.True(t, h.camera.IsOpen())
	require.NoError(t, h.session.StopDetection())
	assert.False(t, h.camera.IsOpen())
	require.NoError(t, h.session.StopDetection())
	assert.Equal(t, 1, h.camera.Closes())
}

func TestSession_ParentCancelReleasesCamera(t *testing.T) {
	h := newHarness(t, at(8))
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.1})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.session.StartDetection(ctx))
	cancel()

	require.Eventually(t, func() bool { return !h.session.Active() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.camera.Closes())
}

func TestSession_BadClassifierSourceDisablesDetection(t *testing.T) {
	h := newHarness(t, at(8))
	require.NoError(t, h.session.Open(context.Background()))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.9})

	loadErr := &common.ClassifierLoadError{URL: "http://bad", Err: errors.New("404")}
	h.loader.On("Load", mock.Anything, "http://bad").Return(nil, loadErr).Once()

	err := h.session.SetClassifierSource(context.Background(), "http://bad")
	assert.ErrorAs(t, err, &loadErr)

	a, ok := h.session.Alert()
	require.True(t, ok)
	assert.Equal(t, model.AlertWarning, a.Kind)
	assert.Empty(t, h.session.ClassifierURL())
	assert.ErrorIs(t, h.session.StartDetection(context.Background()), common.ErrDetectionUnavailable)

	stored, err := h.store.Get(context.Background(), service.KeyClassifierURL)
	require.NoError(t, err)
	assert.Equal(t, sourceURL, string(stored), "last good source stays persisted")
}

func TestSession_OpenRestoresPersistedSource(t *testing.T) {
	h := newHarness(t, at(8))
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, service.KeyClassifierURL, []byte(sourceURL)))
	h.loader.On("Load", mock.Anything, sourceURL).Return(fixedClassifier{label: model.LabelPillMorning, confidence: 0.9}, nil).Once()

	require.NoError(t, h.session.Open(ctx))
	assert.Equal(t, sourceURL, h.session.ClassifierURL())
	h.loader.AssertExpectations(t)
}

func TestSession_OpenWithBrokenPersistedSourceStillOpens(t *testing.T) {
	h := newHarness(t, at(8))
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, service.KeyClassifierURL, []byte(sourceURL)))
	h.loader.On("Load", mock.Anything, sourceURL).Return(nil, &common.ClassifierLoadError{URL: sourceURL, Err: errors.New("offline")}).Once()

	require.NoError(t, h.session.Open(ctx))
	assert.Empty(t, h.session.ClassifierURL())
	a, ok := h.session.Alert()
	require.True(t, ok)
	assert.Equal(t, model.AlertWarning, a.Kind)
}

func TestSession_Reset(t *testing.T) {
	h := newHarness(t, at(8))
	ctx := context.Background()
	require.NoError(t, h.session.Open(ctx))
	h.useClassifier(t, fixedClassifier{label: model.LabelPillMorning, confidence: 0.9})
	require.Equal(t, model.OutcomeAccepted, h.session.Offer(ctx, model.LabelPillMorning, 0.9, at(8)))

	require.NoError(t, h.session.Reset(ctx))

	assert.Equal(t, model.Stats{}, h.session.Stats())
	assert.Empty(t, h.session.History())
	assert.Empty(t, h.session.ClassifierURL())
	_, visible := h.session.Alert()
	assert.False(t, visible)

	for _, key := range []string{service.KeyAdherenceData, service.KeyClassifierURL} {
		_, err := h.store.Get(ctx, key)
		assert.ErrorIs(t, err, common.ErrNotFound, key)
	}
}

func TestSession_ResetRestartsFromDefaultSource(t *testing.T) {
	const defaultURL = "http://models.local/default.json"
	h := newHarness(t, at(8), func(o *Options) { o.DefaultClassifierURL = defaultURL })
	ctx := context.Background()
	h.loader.On("Load", mock.Anything, defaultURL).
		Return(fixedClassifier{label: model.LabelPillMorning, confidence: 0.9}, nil).Twice()

	require.NoError(t, h.session.Open(ctx))
	require.Equal(t, defaultURL, h.session.ClassifierURL())

	require.NoError(t, h.session.Reset(ctx))
	assert.Equal(t, defaultURL, h.session.ClassifierURL())
	_, err := h.store.Get(ctx, service.KeyClassifierURL)
	assert.ErrorIs(t, err, common.ErrNotFound, "the default is used, not persisted")

	require.NoError(t, h.session.StartDetection(ctx))
	require.NoError(t, h.session.StopDetection())
	h.loader.AssertExpectations(t)
}

func TestSession_WeekAndReminders(t *testing.T) {
	h := newHarness(t, at(8).Add(15*time.Minute))
	ctx := context.Background()
	require.NoError(t, h.session.Open(ctx))

	week := h.session.Week()
	require.Len(t, week, 7)
	assert.Equal(t, "2025-06-10", week[6].Date)
	assert.Equal(t, []model.DoseType{model.DoseMorning, model.DoseEvening}, h.session.Doses())

	assert.Equal(t, 1, h.session.SweepReminders(ctx))
	assert.Zero(t, h.session.SweepReminders(ctx))
	require.Len(t, h.notifier.Sent(), 1)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
