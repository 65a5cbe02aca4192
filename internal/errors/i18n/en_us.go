package i18n

// Message keys must match the codes defined in internal/errors/codes.go.
// They are duplicated as strings to avoid an import cycle.
var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[string]string{
		"not_found":         "the requested record was not found",
		"permission_denied": "you do not have permission to perform this action",
		"validator_area_mismatch": "you are not assigned to governance area {area}",

		"invalid_status_transition":      "the assessment cannot move from {from} to {to}",
		"status_disallows_operation":     "this action is not allowed while the assessment is {status}",
		"assessment_not_editable":        "the assessment is not open for editing",
		"assessment_locked_for_deadline": "the correction deadline has passed and the assessment is locked",

		"rework_already_used":              "a rework round has already been used for this assessment",
		"rework_requires_flagged_response": "at least one response must be flagged before requesting rework",
		"rework_not_requested":             "no rework round is in progress",
		"mlgoo_recalibration_already_used": "a recalibration has already been used for this assessment",
		"mlgoo_recalibration_requires_responses": "select at least one response to reopen",
		"deadline_not_expired":                   "the correction deadline has not expired yet",
		"deadline_lock_not_set":                  "the assessment is not locked for a deadline",

		"area_already_calibrated":               "governance area {area} has already been calibrated",
		"calibration_already_pending":           "you already have a pending calibration for area {area}",
		"calibration_requires_flagged_response": "flag at least one response in area {area} before requesting calibration",
		"calibration_area_unknown":              "governance area {area} does not exist",
		"calibration_not_requested":             "no calibration is in progress",

		"response_incomplete":             "response {indicator} is incomplete: missing {fields}",
		"missing_evidence_for_yes_answer": "response {indicator} answers yes for {field} but has no evidence",
		"assessor_checklist_incomplete":   "every response needs checklist data or a feedback comment",
		"area_not_fully_validated":        "area {area} still has responses without a validation status",

		"schema_field_missing":      "field {field} is missing; available fields: {available}",
		"schema_type_mismatch":      "field {field} expected {expected} but got {actual}",
		"schema_unknown_option":     "value {value} is not a declared option for field {field}",
		"schema_unknown_field_kind": "field {field} has an unsupported kind {kind}",
		"rule_unknown_kind":         "rule kind {kind} is not supported",
		"rule_field_missing":        "rule references missing field {field}; available fields: {available}",
		"rule_type_mismatch":        "rule on field {field} expected {expected} but got {actual}",

		"indicator_catalog_invalid": "the indicator catalog could not be loaded",
	},
}
