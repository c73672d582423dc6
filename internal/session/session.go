// Package session owns the running detection pipeline: the ledger, the
// alert machine, the sampling loop and the reminder sweep.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/dosewatch/internal/alert"
	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/detection"
	"github.com/Veraticus/dosewatch/internal/ledger"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/reminder"
	"github.com/Veraticus/dosewatch/internal/schedule"
	"github.com/Veraticus/dosewatch/internal/service"
)

// Options wires a session to its collaborators. Store, Policy, Loader,
// Camera, and Clock are required.
type Options struct {
	Store    service.BlobStore
	Loader   service.ClassifierLoader
	Camera   service.FrameSource
	Notifier service.Notifier
	Tone     service.Tone
	Clock    service.Clock
	Policy   *schedule.Policy

	// DefaultClassifierURL is tried at Open when nothing is persisted.
	DefaultClassifierURL string
	MedicationTerms      []string
	Lifetimes            alert.Lifetimes

	Threshold        float64
	SampleInterval   time.Duration
	ReminderInterval time.Duration
	ReminderGrace    time.Duration
}

// Session is the single context object shared by every caller surface.
type Session struct {
	opts      Options
	ledger    *ledger.Ledger
	alerts    *alert.Machine
	feedback  *alert.Feedback
	gate      *detection.Gate
	reminders *reminder.Scheduler

	classifier    service.Classifier
	cancel        context.CancelFunc
	done          chan struct{}
	sampler       *detection.Sampler
	last          *detection.Result
	classifierURL string
	banner        string
	generation    uint64
	active        bool
	mu            sync.RWMutex
}

// New validates opts and builds the pipeline. Nothing is read until Open.
func New(opts Options) (*Session, error) {
	switch {
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: store is required", common.ErrInvalidConfig)
	case opts.Policy == nil:
		return nil, fmt.Errorf("%w: schedule policy is required", common.ErrInvalidConfig)
	case opts.Loader == nil:
		return nil, fmt.Errorf("%w: classifier loader is required", common.ErrInvalidConfig)
	case opts.Camera == nil:
		return nil, fmt.Errorf("%w: frame source is required", common.ErrInvalidConfig)
	}
	if opts.Clock == nil {
		opts.Clock = service.SystemClock{}
	}
	if opts.Lifetimes == (alert.Lifetimes{}) {
		opts.Lifetimes = alert.DefaultLifetimes()
	}
	if opts.MedicationTerms == nil {
		opts.MedicationTerms = []string{"pill", "med"}
	}

	l := ledger.New(opts.Store, opts.Policy)
	machine := alert.NewMachine(opts.Clock, opts.Lifetimes)

	s := &Session{
		opts:     opts,
		ledger:   l,
		alerts:   machine,
		feedback: alert.NewFeedback(machine, alert.NewMatcher(opts.MedicationTerms), opts.Tone),
		gate:     detection.NewGate(opts.Policy, opts.Threshold),
	}
	if opts.Notifier != nil {
		s.reminders = reminder.NewScheduler(opts.Policy, l, opts.Notifier, opts.Clock, opts.ReminderInterval, opts.ReminderGrace)
	}
	return s, nil
}

// Open loads persisted history and restores the classifier source. Only a
// failure to read history is returned; a bad classifier source leaves
// detection disabled with a warning.
func (s *Session) Open(ctx context.Context) error {
	if err := s.ledger.Load(ctx); err != nil {
		return fmt.Errorf("failed to load adherence history: %w", err)
	}

	source, err := s.opts.Store.Get(ctx, service.KeyClassifierURL)
	switch {
	case errors.Is(err, common.ErrNotFound):
		source = []byte(s.opts.DefaultClassifierURL)
	case err != nil:
		return fmt.Errorf("failed to read classifier source: %w", err)
	}

	url := strings.TrimSpace(string(source))
	if url == "" {
		slog.Info("No classifier source configured; detection disabled")
		return nil
	}
	if err := s.SetClassifierSource(ctx, url); err != nil {
		slog.Warn("Persisted classifier source is unusable", "url", url, "error", err)
	}
	return nil
}

// Close stops detection.
func (s *Session) Close() error {
	return s.StopDetection()
}

// StartDetection opens the camera and starts sampling. The camera is
// released when the loop ends for any reason.
func (s *Session) StartDetection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return common.ErrDetectionActive
	}
	if s.classifier == nil {
		return common.ErrDetectionUnavailable
	}

	if err := s.opts.Camera.Open(ctx); err != nil {
		var camErr *common.CameraAccessError
		if errors.As(err, &camErr) {
			s.banner = camErr.Banner()
		}
		slog.Warn("Failed to open camera", "error", err)
		return fmt.Errorf("failed to start detection: %w", err)
	}
	s.banner = ""

	s.generation++
	gen := s.generation
	runCtx, cancel := context.WithCancel(ctx)
	sampler := detection.NewSampler(s.gate, s.opts.Camera, s.classifier, s.opts.Clock, s.opts.SampleInterval)
	done := make(chan struct{})

	s.active = true
	s.cancel = cancel
	s.done = done
	s.sampler = sampler

	go func() {
		defer close(done)
		defer s.finish(gen)

		err := sampler.Run(runCtx, func() bool { return s.isCurrent(gen) }, func(ctx context.Context, res detection.Result) {
			s.handle(ctx, gen, res)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Detection loop stopped", "error", err)
		}
	}()

	slog.Info("Detection started", "generation", gen, "threshold", s.gate.Threshold())
	return nil
}

// finish releases the camera. If the loop ended without StopDetection the
// session is marked inactive.
func (s *Session) finish(gen uint64) {
	if err := s.opts.Camera.Close(); err != nil {
		slog.Warn("Failed to release camera", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.active {
		s.active = false
		s.cancel()
		s.cancel = nil
	}
}

// StopDetection cancels sampling and waits for the camera to be released.
// It is a no-op when detection is not running.
func (s *Session) StopDetection() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.generation++
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	slog.Info("Detection stopped")
	return nil
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active && s.generation == gen
}

// handle runs on the sampling goroutine, which is the only writer of the
// ledger while detection is active.
func (s *Session) handle(ctx context.Context, gen uint64, res detection.Result) {
	s.mu.Lock()
	if !s.active || s.generation != gen {
		s.mu.Unlock()
		return
	}
	last := res
	s.last = &last
	s.mu.Unlock()

	if !res.Forward {
		return
	}
	s.Offer(ctx, res.Winner.Label, res.Winner.Confidence, res.At)
}

// Offer records one forwarded detection and emits its alerts.
func (s *Session) Offer(ctx context.Context, label model.DetectionLabel, confidence float64, now time.Time) model.RecordOutcome {
	outcome, err := s.ledger.Record(ctx, label, confidence, now)
	if err != nil {
		common.LogError(err, "Failed to persist adherence data", common.Fields{"label": label})
	}
	s.feedback.Apply(label, outcome)
	return outcome
}

// SetClassifierSource loads the classifier at url and persists the source.
// On failure the previous classifier is dropped, detection stops, and a
// warning alert is shown. A running detection loop restarts on success.
func (s *Session) SetClassifierSource(ctx context.Context, url string) error {
	return s.applySource(ctx, url, true)
}

func (s *Session) applySource(ctx context.Context, url string, persist bool) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return common.NewUserError("Classifier URL is empty", common.ErrInvalidConfig)
	}

	s.mu.RLock()
	wasActive := s.active
	s.mu.RUnlock()
	if err := s.StopDetection(); err != nil {
		return err
	}

	cls, err := s.opts.Loader.Load(ctx, url)
	if err != nil {
		s.mu.Lock()
		s.classifier = nil
		s.classifierURL = ""
		s.mu.Unlock()
		s.alerts.Warning("Classifier could not be loaded. Detection is disabled.")
		return err
	}

	s.mu.Lock()
	s.classifier = cls
	s.classifierURL = url
	s.mu.Unlock()

	if persist {
		if err := s.opts.Store.Put(ctx, service.KeyClassifierURL, []byte(url)); err != nil {
			return fmt.Errorf("failed to persist classifier source: %w", err)
		}
	}
	slog.Info("Classifier source set", "url", url, "labels", len(cls.Labels()), "persisted", persist)

	if wasActive {
		return s.StartDetection(ctx)
	}
	return nil
}

// Reset stops detection and erases all persisted state, then starts over
// from the configured default classifier without persisting it.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.StopDetection(); err != nil {
		return err
	}
	if err := s.opts.Store.Delete(ctx, service.KeyAdherenceData, service.KeyClassifierURL); err != nil {
		return fmt.Errorf("failed to reset storage: %w", err)
	}
	if err := s.ledger.Reset(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.classifier = nil
	s.classifierURL = ""
	s.banner = ""
	s.last = nil
	s.mu.Unlock()
	s.alerts.Clear()
	slog.Info("Session reset")

	if url := strings.TrimSpace(s.opts.DefaultClassifierURL); url != "" {
		if err := s.applySource(ctx, url, false); err != nil {
			slog.Warn("Default classifier source is unusable", "url", url, "error", err)
		}
	}
	return nil
}

// RunReminders sweeps for missed doses until ctx is done. It returns
// immediately when no notifier is configured.
func (s *Session) RunReminders(ctx context.Context) error {
	if s.reminders == nil {
		return nil
	}
	return s.reminders.Run(ctx)
}

// SweepReminders runs one reminder sweep at the current time.
func (s *Session) SweepReminders(ctx context.Context) int {
	if s.reminders == nil {
		return 0
	}
	return s.reminders.Sweep(ctx, s.opts.Clock.Now())
}

// OnAlert registers fn for every alert transition.
func (s *Session) OnAlert(fn func(model.AlertState, bool)) {
	s.alerts.OnChange(fn)
}

// Stats returns the current streak and totals.
func (s *Session) Stats() model.Stats {
	return s.ledger.Stats()
}

// Alert returns the visible alert, if any.
func (s *Session) Alert() (model.AlertState, bool) {
	return s.alerts.Current()
}

// Week returns the rolling seven day history ending today.
func (s *Session) Week() []*model.DayLog {
	return s.ledger.Week(s.opts.Clock.Now())
}

// History returns every stored day, oldest first.
func (s *Session) History() []*model.DayLog {
	return s.ledger.Days()
}

// Doses returns the scheduled dose types in schedule order.
func (s *Session) Doses() []model.DoseType {
	windows := s.opts.Policy.Windows()
	out := make([]model.DoseType, 0, len(windows))
	for _, w := range windows {
		out = append(out, w.Dose)
	}
	return out
}

// Banner returns the persistent camera error message, or "".
func (s *Session) Banner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.banner
}

// LastDetection returns the most recent gate result of the current run.
func (s *Session) LastDetection() (detection.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return detection.Result{}, false
	}
	return *s.last, true
}

// Active reports whether the sampling loop is running.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ClassifierURL returns the loaded classifier source, or "".
func (s *Session) ClassifierURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classifierURL
}

// SamplerStats returns the tick counters of the current run.
func (s *Session) SamplerStats() detection.SamplerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sampler == nil {
		return detection.SamplerStats{}
	}
	return s.sampler.Stats()
}
