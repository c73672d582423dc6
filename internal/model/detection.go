package model

import (
	"regexp"
	"strings"
	"time"
)

// DetectionLabel is a classifier output class in canonical lowercase,
// underscore separated form.
type DetectionLabel string

// Known detection labels.
const (
	LabelNoPill        DetectionLabel = "no_pill"
	LabelMultiplePills DetectionLabel = "multiple_pills"
	LabelPillMorning   DetectionLabel = "pill_morning"
	LabelPillEvening   DetectionLabel = "pill_evening"
	LabelPillAfternoon DetectionLabel = "pill_afternoon"
)

var canonicalLabel = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// IsCanonical reports whether the label is lowercase and underscore separated.
func (l DetectionLabel) IsCanonical() bool {
	return canonicalLabel.MatchString(string(l))
}

// IsIgnored reports whether the label never reaches the ledger.
func (l DetectionLabel) IsIgnored() bool {
	return l == LabelNoPill || l == LabelMultiplePills
}

// Normalized returns the label as lowercase words, e.g. "pill morning".
func (l DetectionLabel) Normalized() string {
	return strings.ToLower(strings.ReplaceAll(string(l), "_", " "))
}

// Prediction is one entry of a classifier's output.
type Prediction struct {
	Label      DetectionLabel `json:"label"`
	Confidence float64        `json:"probability"`
}

// Frame is a single captured image handed to the classifier.
type Frame struct {
	CapturedAt  time.Time
	Source      string
	ContentType string
	Data        []byte
	Sequence    uint64
}
