package compliance

import (
	"github.com/generyand/sinag-sub000/internal/assessment/domain"
)

// Area result labels persisted on the assessment record.
const (
	AreaPassed = "Passed"
	AreaFailed = "Failed"
)

// Aggregation is the per-assessment outcome of the "3+1" rule.
type Aggregation struct {
	Overall     domain.ComplianceStatus
	AreaResults map[string]string
}

// AggregateAreas applies the "3+1" rule over per-area validation
// verdicts. An area passes when every validated response in it is Pass
// or Conditional; responses without a verdict yet are excluded, not
// counted as failing. Overall PASSED requires all three core areas and
// at least one essential area to pass.
func AggregateAreas(verdictsByArea map[int][]domain.ValidationStatus) Aggregation {
	areaResults := make(map[string]string, 6)
	passedByID := make(map[int]bool, 6)

	for _, area := range domain.Areas() {
		passed := areaPassed(verdictsByArea[area.ID])
		passedByID[area.ID] = passed
		if passed {
			areaResults[area.Name] = AreaPassed
		} else {
			areaResults[area.Name] = AreaFailed
		}
	}

	corePassed := 0
	for _, id := range domain.CoreAreaIDs() {
		if passedByID[id] {
			corePassed++
		}
	}
	essentialPassed := 0
	for _, id := range domain.EssentialAreaIDs() {
		if passedByID[id] {
			essentialPassed++
		}
	}

	overall := domain.ComplianceFailed
	if corePassed == len(domain.CoreAreaIDs()) && essentialPassed >= 1 {
		overall = domain.CompliancePassed
	}
	return Aggregation{
		Overall:     overall,
		AreaResults: areaResults,
	}
}

func areaPassed(verdicts []domain.ValidationStatus) bool {
	for _, v := range verdicts {
		switch v {
		case domain.ValidationPass, domain.ValidationConditional:
		case domain.ValidationFail:
			return false
		}
	}
	return true
}
