package compliance

// FunctionalityTier is the 4-tier institution classification derived
// from sub-indicator compliance percentage.
type FunctionalityTier string

const (
	HighlyFunctional     FunctionalityTier = "HIGHLY_FUNCTIONAL"
	ModeratelyFunctional FunctionalityTier = "MODERATELY_FUNCTIONAL"
	LowFunctional        FunctionalityTier = "LOW_FUNCTIONAL"
	NonFunctional        FunctionalityTier = "NON_FUNCTIONAL"
)

var tierRank = map[FunctionalityTier]int{
	NonFunctional:        0,
	LowFunctional:        1,
	ModeratelyFunctional: 2,
	HighlyFunctional:     3,
}

// ClassifyFunctionality maps a sub-indicator pass ratio to a tier:
// >=75% highly, 50-74% moderately, 1-49% low, 0% non-functional.
// The classification is recomputed and overwritten on every finalize,
// so it must be deterministic for identical inputs.
func ClassifyFunctionality(passed, total int) FunctionalityTier {
	if total <= 0 || passed <= 0 {
		return NonFunctional
	}
	percentage := float64(passed) / float64(total) * 100
	switch {
	case percentage >= 75:
		return HighlyFunctional
	case percentage >= 50:
		return ModeratelyFunctional
	default:
		return LowFunctional
	}
}
