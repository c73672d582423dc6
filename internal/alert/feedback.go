package alert

import (
	"fmt"
	"strings"

	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/service"
)

// Matcher decides whether a label looks like a medication label.
type Matcher struct {
	terms []string
}

// NewMatcher matches labels whose normalized text contains any of terms.
func NewMatcher(terms []string) Matcher {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return Matcher{terms: cleaned}
}

// Matches reports whether label resembles a medication label.
func (m Matcher) Matches(label model.DetectionLabel) bool {
	text := label.Normalized()
	for _, t := range m.terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Feedback turns ledger outcomes into alerts and the confirmation tone.
type Feedback struct {
	machine *Machine
	tone    service.Tone
	matcher Matcher
}

// NewFeedback wires a machine, a medication matcher and a tone together.
func NewFeedback(machine *Machine, matcher Matcher, tone service.Tone) *Feedback {
	return &Feedback{machine: machine, matcher: matcher, tone: tone}
}

// Apply emits the alerts for one forwarded detection.
func (f *Feedback) Apply(label model.DetectionLabel, outcome model.RecordOutcome) {
	if outcome == model.OutcomeIgnored {
		return
	}

	f.machine.Info(fmt.Sprintf("Detected: %s", label.Normalized()))

	switch outcome {
	case model.OutcomeAccepted:
		f.machine.Success(fmt.Sprintf("%s recorded. Nice work!", capitalize(label.Normalized())))
		if f.tone != nil {
			f.tone.Play()
		}
	case model.OutcomeNotScheduled:
		if f.matcher.Matches(label) {
			f.machine.Warning(fmt.Sprintf("%s is not scheduled right now", capitalize(label.Normalized())))
		}
	case model.OutcomeAlreadyTaken:
		// Already logged today; the info alert is enough.
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
