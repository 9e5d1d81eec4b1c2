package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeMissingField     = "MISSING_FIELD"
	ErrCodeInvalidProducts  = "INVALID_PRODUCTS"
	ErrCodeBatchTooLarge    = "BATCH_TOO_LARGE"
	ErrCodeUnauthorised     = "UNAUTHORIZED"
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeInvalidID        = "INVALID_ID"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAuditDisabled    = "AUDIT_DISABLED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNoProducts       = NewDomainError(ErrCodeMissingField, "No products found in the request")
	ErrProductsNotList  = NewDomainError(ErrCodeInvalidProducts, "Products should be a list")
	ErrBatchTooLarge    = NewDomainError(ErrCodeBatchTooLarge, "Too many products in a single request")
	ErrModelUnavailable = NewDomainError(ErrCodeModelUnavailable, "Model is not loaded")
	ErrPredictTimeout   = NewDomainError(ErrCodeTimeout, "Prediction timed out")
	ErrInvalidJSON      = NewDomainError(ErrCodeInvalidJSON, "Request body must be a JSON object")
	ErrProductNotObject = NewDomainError(ErrCodeInvalidProducts, "Each product should be an object")
	ErrBodyTooLarge     = NewDomainError(ErrCodeBatchTooLarge, "Request body too large")
	ErrInvalidRequestID = NewDomainError(ErrCodeInvalidID, "Request ID must be a UUID")
	ErrRequestNotFound  = NewDomainError(ErrCodeNotFound, "No predictions recorded for this request")
	ErrAuditDisabled    = NewDomainError(ErrCodeAuditDisabled, "Prediction audit is disabled")
)

// InputShapeError reports a malformed request body. It is recovered at the
// HTTP boundary and never reaches the classification pipeline.
type InputShapeError struct {
	Field  string
	Reason string
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LoadError reports a model artifact that is absent, incomplete or does not
// match the configured label count, feature builder or vocabulary.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load model %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load model %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// TrainingError aborts a fine-tuning run. No artifact is written after one.
type TrainingError struct {
	Epoch  int
	Batch  int
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	msg := fmt.Sprintf("training failed at epoch %d batch %d: %s", e.Epoch, e.Batch, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// EncodingError describes a text that exceeded the maximum sequence length.
// Such texts are truncated, not rejected; the error is informational.
type EncodingError struct {
	Row    int
	Length int
	Limit  int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("row %d: %d tokens exceed the limit of %d and were truncated", e.Row, e.Length, e.Limit)
}
