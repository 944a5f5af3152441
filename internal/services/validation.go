package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Error codes surfaced in the response envelope
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeInvalidType         = "INVALID_TYPE"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeInvalidOrExpired    = "INVALID_OR_EXPIRED"
	CodeInternal            = "INTERNAL"
)

// ErrorDetail is the machine-readable error shape
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorResponse wraps every error payload
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// SendErrorResponse sends a structured JSON error response
func SendErrorResponse(w http.ResponseWriter, code, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	detail := ErrorDetail{Code: code, Message: message}
	if validationErr != nil {
		if fieldErrs, ok := validationErr.(validator.ValidationErrors); ok {
			detail.Details = make(map[string]string)
			for _, err := range fieldErrs {
				detail.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object into dst, rejecting unknown
// fields and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}
	return nil
}
