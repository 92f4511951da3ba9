package progress

import "github.com/felixgeelhaar/playground/internal/domain"

// Summary is the derived UI state of a level.
type Summary struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Badge      string  `json:"badge"`
	Complete   bool    `json:"complete"`
}

// Percentage returns completed/total*100, or 0 for an empty list.
func Percentage(records []domain.ExerciseRecord) float64 {
	return percent(CompletedCount(records), len(records))
}

func percent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// BadgeTier returns the highest tier whose minimums are met.
// Tiers are expected in ascending order; nil tiers use domain.DefaultBadges.
func BadgeTier(completed, total int, tiers []domain.BadgeThreshold) string {
	if len(tiers) == 0 {
		tiers = domain.DefaultBadges()
	}

	pct := percent(completed, total)
	badge := tiers[0].Name
	for _, t := range tiers {
		if completed >= t.MinCompleted && pct >= t.MinPercent {
			badge = t.Name
		}
	}
	return badge
}

// Summarize derives the summary for a level's records.
func Summarize(records []domain.ExerciseRecord, tiers []domain.BadgeThreshold) Summary {
	completed := CompletedCount(records)
	return Summary{
		Completed:  completed,
		Total:      len(records),
		Percentage: percent(completed, len(records)),
		Badge:      BadgeTier(completed, len(records), tiers),
		Complete:   AllComplete(records),
	}
}

// LevelsPercentage returns the floor percentage of catalog levels completed.
func LevelsPercentage(completedLevels, totalLevels int) int {
	if totalLevels <= 0 {
		return 0
	}
	if completedLevels > totalLevels {
		completedLevels = totalLevels
	}
	return completedLevels * 100 / totalLevels
}
