// Package policy provides authorization decisions for workflow actions.
package policy

import (
	"github.com/generyand/sinag-sub000/internal/assessment/domain"
)

// Action represents a policy decision for a workflow actor action.
type Action int

const (
	// ActionEditResponses allows saving response data and managing
	// evidence during an editable phase.
	ActionEditResponses Action = iota + 1
	// ActionSubmit allows submitting the assessment for review.
	ActionSubmit
	// ActionRequestRework allows sending the submission back for the
	// single table-wide rework round.
	ActionRequestRework
	// ActionFinalizeAssessor allows concluding the assessor review phase.
	ActionFinalizeAssessor
	// ActionRequestCalibration allows opening a per-area calibration
	// round.
	ActionRequestCalibration
	// ActionFinalizeValidation allows concluding one area's validation.
	ActionFinalizeValidation
	// ActionApproveFinal allows granting final approval.
	ActionApproveFinal
	// ActionRequestRecalibration allows reopening a completed assessment
	// for the single post-approval recalibration.
	ActionRequestRecalibration
	// ActionAdministerDeadline allows setting deadlines and clearing
	// deadline locks.
	ActionAdministerDeadline
)

// Can reports whether the actor may perform the action on the
// assessment. Status and area guards live in the service layer; Can only
// answers the role question.
func Can(actor domain.Actor, action Action, _ domain.Assessment) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	switch action {
	case ActionEditResponses, ActionSubmit:
		return actor.Role == domain.RoleBLGU
	case ActionRequestRework, ActionFinalizeAssessor:
		return actor.Role == domain.RoleAssessor
	case ActionRequestCalibration, ActionFinalizeValidation:
		return actor.Role == domain.RoleValidator
	case ActionApproveFinal, ActionRequestRecalibration:
		return actor.Role == domain.RoleMLGOO
	case ActionAdministerDeadline:
		return false
	default:
		return false
	}
}
