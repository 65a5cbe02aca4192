package domain

import "fmt"

// Status is the workflow state of one assessment.
type Status string

const (
	StatusDraft                   Status = "draft"
	StatusSubmitted               Status = "submitted"
	StatusInReview                Status = "in_review"
	StatusRework                  Status = "rework"
	StatusAwaitingFinalValidation Status = "awaiting_final_validation"
	StatusAwaitingMlgooApproval   Status = "awaiting_mlgoo_approval"
	StatusCompleted               Status = "completed"

	// StatusSubmittedLegacy is the pre-migration submitted value still
	// present on old rows. Guards accept it; the next transition rewrites
	// it to a current status.
	StatusSubmittedLegacy Status = "submitted_legacy"
)

// ParseStatus returns the Status for a persisted value.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	switch s {
	case StatusDraft, StatusSubmitted, StatusInReview, StatusRework,
		StatusAwaitingFinalValidation, StatusAwaitingMlgooApproval,
		StatusCompleted, StatusSubmittedLegacy:
		return s, nil
	}
	return "", fmt.Errorf("unknown assessment status %q", value)
}

// IsSubmittedPhase reports whether the status is any flavor of submitted
// awaiting assessor review.
func (s Status) IsSubmittedPhase() bool {
	return s == StatusSubmitted || s == StatusSubmittedLegacy || s == StatusInReview
}

// validTransitions is the workflow transition table. COMPLETED reopening
// via MLGOO recalibration is handled separately because it is bounded to
// one use per assessment.
var validTransitions = map[Status][]Status{
	StatusDraft:                   {StatusSubmitted},
	StatusSubmitted:               {StatusInReview, StatusRework, StatusAwaitingFinalValidation},
	StatusSubmittedLegacy:         {StatusInReview, StatusRework, StatusAwaitingFinalValidation},
	StatusInReview:                {StatusRework, StatusAwaitingFinalValidation},
	StatusRework:                  {StatusSubmitted, StatusInReview, StatusAwaitingFinalValidation},
	StatusAwaitingFinalValidation: {StatusRework, StatusAwaitingMlgooApproval},
	StatusAwaitingMlgooApproval:   {StatusCompleted},
	StatusCompleted:               {},
}

// CanTransition reports whether the workflow allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
