package errors

import "net/http"

// APIError is the error every service returns to handlers. Cause keeps the
// underlying failure for logs and is never serialized.
type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

// InternalCause is Internal with the failure that triggered it attached.
func InternalCause(message string, cause error) *APIError {
	err := Internal(message)
	err.Cause = cause
	return err
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

// Validation is a 400 that names the offending fields in Details.
func Validation(message string, fields map[string]string) *APIError {
	err := BadRequest("validation_failed", message)
	if len(fields) > 0 {
		err.Details = map[string]interface{}{"fields": fields}
	}
	return err
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}
