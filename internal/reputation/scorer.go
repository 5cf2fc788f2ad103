package reputation

import (
	"math"

	"gatekeeper/internal/domain"
)

const (
	initialScore = 100
	minScore     = 0
	maxScore     = 100

	defaultDeduction = 10
)

// baseDeductions maps a detection type to the score penalty applied at
// full confidence. Unrecognized types fall back to defaultDeduction.
var baseDeductions = map[string]int{
	domain.DetectionTypeBot:        30,
	domain.DetectionTypeSuspicious: 15,
	domain.DetectionTypeManual:     50,
}

// Deduction computes the score penalty for one detection. The penalty
// scales with the confidence of the current detection only; the
// max-merged confidence stored on the blacklist row does not feed back
// into scoring.
func Deduction(detectionType string, confidenceScore float64) int {
	base, ok := baseDeductions[detectionType]
	if !ok {
		base = defaultDeduction
	}
	return int(math.Round(float64(base) * confidenceScore))
}

// Apply lowers the previous score by the deduction for this detection and
// returns the clamped result. A negative prev initializes a fresh record.
func Apply(prev int, detectionType string, confidenceScore float64) int {
	if prev < 0 {
		prev = initialScore
	}
	return clamp(prev - Deduction(detectionType, confidenceScore))
}

// CategoryFor buckets a score into the four-level risk category. The
// boundaries are inclusive on the upper side of each band: a score of
// exactly 25 is high, not critical.
func CategoryFor(score int) string {
	switch {
	case score < 25:
		return domain.RiskCategoryCritical
	case score < 50:
		return domain.RiskCategoryHigh
	case score < 75:
		return domain.RiskCategoryMedium
	default:
		return domain.RiskCategoryLow
	}
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
