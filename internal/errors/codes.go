// Package errors provides structured error handling for the assessment
// core. HandleError, GetMetadata, and Code.HTTPStatus form the boundary
// surface a transport layer consumes when translating domain errors
// into gRPC statuses and HTTP responses.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error reason code.
//
// Codes are lower snake_case so they can be surfaced verbatim to API
// clients as structured refusal reasons.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "unknown"

	// Lookup errors
	CodeNotFound Code = "not_found"

	// Actor errors
	CodePermissionDenied      Code = "permission_denied"
	CodeValidatorAreaMismatch Code = "validator_area_mismatch"

	// Workflow transition errors
	CodeInvalidStatusTransition Code = "invalid_status_transition"
	CodeStatusDisallowsOp       Code = "status_disallows_operation"
	CodeAssessmentNotEditable   Code = "assessment_not_editable"
	CodeAssessmentLocked        Code = "assessment_locked_for_deadline"

	// Rework errors
	CodeReworkAlreadyUsed   Code = "rework_already_used"
	CodeReworkNeedsFlags    Code = "rework_requires_flagged_response"
	CodeReworkNotRequested  Code = "rework_not_requested"
	CodeRecalibrationUsed   Code = "mlgoo_recalibration_already_used"
	CodeRecalibrationEmpty  Code = "mlgoo_recalibration_requires_responses"
	CodeDeadlineNotExpired  Code = "deadline_not_expired"
	CodeDeadlineLockMissing Code = "deadline_lock_not_set"

	// Calibration errors
	CodeAreaAlreadyCalibrated   Code = "area_already_calibrated"
	CodeCalibrationPending      Code = "calibration_already_pending"
	CodeCalibrationNeedsFlags   Code = "calibration_requires_flagged_response"
	CodeCalibrationAreaUnknown  Code = "calibration_area_unknown"
	CodeCalibrationNotRequested Code = "calibration_not_requested"

	// Submission errors
	CodeResponseIncomplete Code = "response_incomplete"
	CodeMissingEvidence    Code = "missing_evidence_for_yes_answer"
	CodeChecklistMissing   Code = "assessor_checklist_incomplete"
	CodeAreaNotValidated   Code = "area_not_fully_validated"

	// Schema and rule evaluation errors
	CodeSchemaFieldMissing  Code = "schema_field_missing"
	CodeSchemaTypeMismatch  Code = "schema_type_mismatch"
	CodeSchemaUnknownOption Code = "schema_unknown_option"
	CodeSchemaUnknownField  Code = "schema_unknown_field_kind"
	CodeRuleUnknownKind     Code = "rule_unknown_kind"
	CodeRuleFieldMissing    Code = "rule_field_missing"
	CodeRuleTypeMismatch    Code = "rule_type_mismatch"

	// Catalog errors
	CodeCatalogInvalid Code = "indicator_catalog_invalid"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// NotFound - resource does not exist
	case CodeNotFound:
		return codes.NotFound

	// PermissionDenied - wrong actor for the operation
	case CodePermissionDenied,
		CodeValidatorAreaMismatch:
		return codes.PermissionDenied

	// FailedPrecondition - state does not allow the operation
	case CodeInvalidStatusTransition,
		CodeStatusDisallowsOp,
		CodeAssessmentNotEditable,
		CodeAssessmentLocked,
		CodeReworkAlreadyUsed,
		CodeReworkNeedsFlags,
		CodeReworkNotRequested,
		CodeRecalibrationUsed,
		CodeRecalibrationEmpty,
		CodeDeadlineNotExpired,
		CodeDeadlineLockMissing,
		CodeAreaAlreadyCalibrated,
		CodeCalibrationPending,
		CodeCalibrationNeedsFlags,
		CodeCalibrationAreaUnknown,
		CodeCalibrationNotRequested,
		CodeResponseIncomplete,
		CodeMissingEvidence,
		CodeChecklistMissing,
		CodeAreaNotValidated:
		return codes.FailedPrecondition

	// InvalidArgument - schema or rule validation failures
	case CodeSchemaFieldMissing,
		CodeSchemaTypeMismatch,
		CodeSchemaUnknownOption,
		CodeSchemaUnknownField,
		CodeRuleUnknownKind,
		CodeRuleFieldMissing,
		CodeRuleTypeMismatch,
		CodeCatalogInvalid:
		return codes.InvalidArgument

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to the HTTP status the API layer uses.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.InvalidArgument:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// IsBusinessRefusal reports whether the code represents a business rule
// refusal that the operations facade returns as a structured result
// instead of raising.
func (c Code) IsBusinessRefusal() bool {
	switch c.GRPCCode() {
	case codes.FailedPrecondition, codes.InvalidArgument:
		return true
	default:
		return false
	}
}
