// Package detection selects a single winning label per classifier call and
// decides whether it is confident enough to record.
package detection

import (
	"time"

	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/schedule"
)

// DefaultThreshold is the confidence a detection must exceed to be recorded.
const DefaultThreshold = 0.75

// Overlay colors keyed to schedule validity.
const (
	ColorOnSchedule  = "#10b981"
	ColorOffSchedule = "#f59e0b"
)

// Box is a bounding rectangle in fractions of the frame size.
type Box struct {
	X, Y, W, H float64
}

// defaultBox frames the central region; the classifier reports no location.
var defaultBox = Box{X: 0.2, Y: 0.2, W: 0.6, H: 0.6}

// Overlay tells the renderer what to draw over the frame.
type Overlay struct {
	Label      model.DetectionLabel
	Color      string
	Box        Box
	Confidence float64
	Visible    bool
	OnSchedule bool
}

// Result is the gate's verdict for one classifier call.
type Result struct {
	At      time.Time
	Overlay Overlay
	Winner  model.Prediction
	// Forward is true when the winner should be offered to the ledger.
	Forward bool
}

// Gate applies the confidence threshold and builds the overlay.
type Gate struct {
	policy    *schedule.Policy
	threshold float64
}

// NewGate creates a gate; a non-positive threshold selects DefaultThreshold.
func NewGate(policy *schedule.Policy, threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{policy: policy, threshold: threshold}
}

// Threshold returns the configured confidence threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Select returns the highest confidence prediction. Ties keep the first seen.
func Select(predictions []model.Prediction) (model.Prediction, bool) {
	if len(predictions) == 0 {
		return model.Prediction{}, false
	}
	best := predictions[0]
	for _, p := range predictions[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return best, true
}

// Evaluate selects the winner of one classifier call. It returns false when
// there were no candidates.
func (g *Gate) Evaluate(predictions []model.Prediction, now time.Time) (Result, bool) {
	winner, ok := Select(predictions)
	if !ok {
		return Result{}, false
	}

	res := Result{
		At:      now,
		Winner:  winner,
		Forward: winner.Confidence > g.threshold,
	}

	if winner.Label != model.LabelNoPill {
		onSchedule := g.policy.IsValidNow(winner.Label, now).Valid
		color := ColorOffSchedule
		if onSchedule {
			color = ColorOnSchedule
		}
		res.Overlay = Overlay{
			Visible:    true,
			Label:      winner.Label,
			Confidence: winner.Confidence,
			Box:        defaultBox,
			Color:      color,
			OnSchedule: onSchedule,
		}
	}
	return res, true
}
