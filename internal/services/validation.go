package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var verrs validator.ValidationErrors
	if errors.As(validationErr, &verrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range verrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendWorkflowError maps the verification error taxonomy onto HTTP statuses.
func SendWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		SendErrorResponse(w, "Payment not found", http.StatusNotFound, nil)
	case errors.Is(err, ErrInvalidState):
		SendErrorResponse(w, "Payment has already been processed", http.StatusConflict, nil)
	case errors.Is(err, ErrNotAllowed):
		SendErrorResponse(w, "Insufficient permissions", http.StatusForbidden, nil)
	default:
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
	}
}
