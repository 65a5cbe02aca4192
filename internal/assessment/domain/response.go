package domain

import (
	"fmt"
	"time"
)

// ValidationStatus is a validator's verdict on one response.
type ValidationStatus string

const (
	ValidationPass        ValidationStatus = "Pass"
	ValidationFail        ValidationStatus = "Fail"
	ValidationConditional ValidationStatus = "Conditional"
)

// ParseValidationStatus returns the ValidationStatus for a stored value.
func ParseValidationStatus(value string) (ValidationStatus, error) {
	s := ValidationStatus(value)
	switch s {
	case ValidationPass, ValidationFail, ValidationConditional:
		return s, nil
	}
	return "", fmt.Errorf("unknown validation status %q", value)
}

// Response is one indicator's answer within an assessment. Records are
// created lazily the first time a submitter saves data for an indicator.
type Response struct {
	ID           string
	AssessmentID string
	IndicatorID  string
	AreaID       int

	Data map[string]any

	// Checklist holds per-role annotation namespaces so assessor and
	// validator notes never collide.
	Checklist map[Role]map[string]any

	IsCompleted           bool
	RequiresRework        bool
	FlaggedForCalibration bool
	ValidationStatus      *ValidationStatus
	GeneratedRemark       string
	FeedbackComment       string

	// LastCycleStartedAt is the most recent rework or calibration request
	// covering this response. Evidence uploaded before it cannot satisfy
	// completeness for the current cycle.
	LastCycleStartedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewResponse creates a lazily-initialized response for an indicator.
func NewResponse(assessmentID, indicatorID string, areaID int, now func() time.Time, idGenerator func() (string, error)) (Response, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = NewID
	}
	if assessmentID == "" {
		return Response{}, fmt.Errorf("assessment id is required")
	}
	if indicatorID == "" {
		return Response{}, fmt.Errorf("indicator id is required")
	}
	if !ValidAreaID(areaID) {
		return Response{}, fmt.Errorf("governance area %d out of range", areaID)
	}

	id, err := idGenerator()
	if err != nil {
		return Response{}, fmt.Errorf("generate response id: %w", err)
	}
	createdAt := now().UTC()
	return Response{
		ID:           id,
		AssessmentID: assessmentID,
		IndicatorID:  indicatorID,
		AreaID:       areaID,
		Data:         make(map[string]any),
		Checklist:    make(map[Role]map[string]any),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// RoleChecklist returns the checklist namespace for a role, creating it
// on first write access.
func (r *Response) RoleChecklist(role Role) map[string]any {
	if r.Checklist == nil {
		r.Checklist = make(map[Role]map[string]any)
	}
	if r.Checklist[role] == nil {
		r.Checklist[role] = make(map[string]any)
	}
	return r.Checklist[role]
}

// ClearRoleChecklist drops every checklist entry for one role.
func (r *Response) ClearRoleChecklist(role Role) {
	if r.Checklist != nil {
		delete(r.Checklist, role)
	}
}

// HasChecklistData reports whether the role has any checklist entries.
func (r Response) HasChecklistData(role Role) bool {
	return len(r.Checklist[role]) > 0
}

// ClearValidation drops the validator verdict so the response must be
// re-validated after the next cycle.
func (r *Response) ClearValidation() {
	r.ValidationStatus = nil
}

// EffectiveRequiresRework applies ghost-rework suppression: while the
// assessment is in a calibration rework, a requires_rework flag inherited
// from the original phase-1 rework is ignored unless the response's
// governance area is currently under an open calibration. Stale flags
// must not block unrelated areas.
func EffectiveRequiresRework(r Response, a Assessment) bool {
	if !r.RequiresRework {
		return false
	}
	if !a.IsCalibrationRework {
		return true
	}
	return a.AreaUnderActiveCalibration(r.AreaID)
}
