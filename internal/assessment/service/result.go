package service

import (
	stderr "errors"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
)

// OpError is one structured business refusal inside an OpResult.
type OpError struct {
	Code     apperrors.Code    `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OpResult is the outcome every workflow operation returns to the API
// layer. Business refusals populate Errors; NotFound and
// PermissionDenied are raised as Go errors instead.
type OpResult struct {
	Success   bool          `json:"success"`
	NewStatus domain.Status `json:"new_status"`
	Errors    []OpError     `json:"errors,omitempty"`
}

func success(status domain.Status) OpResult {
	return OpResult{Success: true, NewStatus: status}
}

func refusal(status domain.Status, errs ...OpError) OpResult {
	return OpResult{Success: false, NewStatus: status, Errors: errs}
}

func opError(err *apperrors.Error) OpError {
	return OpError{Code: err.Code, Message: err.Message, Metadata: err.Metadata}
}

// resultFromError converts a transaction error into the facade shape:
// business refusals become structured entries, everything else raises.
// status is the last status observed before the operation failed.
func resultFromError(err error, status domain.Status) (OpResult, error) {
	if err == nil {
		return success(status), nil
	}
	var appErr *apperrors.Error
	if stderr.As(err, &appErr) && appErr.Code.IsBusinessRefusal() {
		return refusal(status, opError(appErr)), nil
	}
	return OpResult{}, err
}
