package model

// Stats is the derived adherence summary.
type Stats struct {
	CurrentStreak  int `json:"currentStreak"`
	TotalTaken     int `json:"totalPillsTaken"`
	TotalScheduled int `json:"totalPillsScheduled"`
}

// AdherenceRate returns taken doses as a fraction of scheduled doses.
func (s Stats) AdherenceRate() float64 {
	if s.TotalScheduled == 0 {
		return 0
	}
	return float64(s.TotalTaken) / float64(s.TotalScheduled)
}

// Snapshot is the persisted ledger document.
type Snapshot struct {
	AdherenceLog []*DayLog `json:"adherenceLog"`
	Stats
}

// RecordOutcome is the result of offering a detection to the ledger.
type RecordOutcome string

// Record outcomes.
const (
	OutcomeAccepted     RecordOutcome = "ACCEPTED"
	OutcomeAlreadyTaken RecordOutcome = "ALREADY_TAKEN"
	OutcomeNotScheduled RecordOutcome = "NOT_SCHEDULED"
	OutcomeIgnored      RecordOutcome = "IGNORED"
)
