package shared

import (
	"errors"
	"net/http"

	"hrsched/internal/platform/validation"
	"hrsched/internal/transport/http/api"
)

type ValidationIssue = validation.Issue

// FailValidation writes the 400 validation envelope with details.fields.
func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(
		w,
		http.StatusBadRequest,
		"validation_error",
		"payload validation failed",
		map[string]any{"fields": issues},
		requestID,
	)
}

// RejectValidation writes the validation envelope when err carries field
// issues and reports whether it did.
func RejectValidation(w http.ResponseWriter, requestID string, err error) bool {
	var verr *validation.Error
	if !errors.As(err, &verr) || len(verr.Issues) == 0 {
		return false
	}
	FailValidation(w, requestID, verr.Issues)
	return true
}
