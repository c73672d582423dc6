package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/service"
)

// DefaultInterval is the sampling cadence while detection is active.
const DefaultInterval = 500 * time.Millisecond

// Handler receives every evaluated result on the sampler's goroutine.
type Handler func(ctx context.Context, res Result)

// SamplerStats counts what happened to each tick.
type SamplerStats struct {
	Ticks     uint64
	Skipped   uint64
	Failed    uint64
	Discarded uint64
	Evaluated uint64
}

type tickResult struct {
	err         error
	predictions []model.Prediction
	frame       model.Frame
}

// Sampler runs one classifier call per tick and never overlaps calls.
type Sampler struct {
	gate       *Gate
	source     service.FrameSource
	classifier service.Classifier
	clock      service.Clock
	interval   time.Duration

	ticks     atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
	evaluated atomic.Uint64
}

// NewSampler creates a sampler reading frames from source.
func NewSampler(gate *Gate, source service.FrameSource, classifier service.Classifier, clock service.Clock, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		gate:       gate,
		source:     source,
		classifier: classifier,
		clock:      clock,
		interval:   interval,
	}
}

// Stats returns the tick counters.
func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Ticks:     s.ticks.Load(),
		Skipped:   s.skipped.Load(),
		Failed:    s.failed.Load(),
		Discarded: s.discarded.Load(),
		Evaluated: s.evaluated.Load(),
	}
}

// Run samples until ctx is done. active is checked before any result is
// handled so a result that lands after stop is dropped. A call still in
// flight when Run returns completes in the background and is discarded.
func (s *Sampler) Run(ctx context.Context, active func() bool, handle Handler) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	results := make(chan tickResult, 1)
	inFlight := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			s.ticks.Add(1)
			if inFlight {
				s.skipped.Add(1)
				continue
			}
			inFlight = true
			go s.sample(ctx, results)

		case res := <-results:
			inFlight = false
			if ctx.Err() != nil || !active() {
				s.discarded.Add(1)
				continue
			}
			if res.err != nil {
				s.failed.Add(1)
				slog.Debug("Detection tick failed", "error", res.err)
				continue
			}
			out, ok := s.gate.Evaluate(res.predictions, s.clock.Now())
			if !ok {
				s.failed.Add(1)
				slog.Debug("Detection tick had no candidates", "frame", res.frame.Sequence)
				continue
			}
			s.evaluated.Add(1)
			handle(ctx, out)
		}
	}
}

func (s *Sampler) sample(ctx context.Context, results chan<- tickResult) {
	frame, err := s.source.Next(ctx)
	if err != nil {
		results <- tickResult{err: fmt.Errorf("failed to read frame: %w", err)}
		return
	}

	predictions, err := s.classifier.Predict(ctx, frame)
	if err != nil {
		results <- tickResult{frame: frame, err: &common.ClassifierInferenceError{Sequence: frame.Sequence, Err: err}}
		return
	}
	if len(predictions) == 0 {
		results <- tickResult{frame: frame, err: &common.ClassifierInferenceError{Sequence: frame.Sequence, Err: common.ErrNoCandidates}}
		return
	}
	results <- tickResult{frame: frame, predictions: predictions}
}
