package ledger

import "github.com/Veraticus/dosewatch/internal/model"

// Streak counts consecutive logs, most recent first, with at least one dose
// taken. It stops at the first log with nothing taken. Calendar gaps between
// logs do not break the streak; only a stored day with no dose does.
func Streak(days []*model.DayLog) int {
	sorted := make([]*model.DayLog, len(days))
	copy(sorted, days)
	model.SortDaysDescending(sorted)

	streak := 0
	for _, day := range sorted {
		if !day.AnyTaken() {
			break
		}
		streak++
	}
	return streak
}
