package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/internal/logger"
)

// ErrorCode represents standardized error codes for the API
type ErrorCode string

const (
	// Client Error Codes (4xx)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodeIndexNotFound    ErrorCode = "INDEX_NOT_FOUND"
	ErrorCodeDocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrorCodeJobNotFound      ErrorCode = "JOB_NOT_FOUND"
	ErrorCodeIndexExists      ErrorCode = "INDEX_ALREADY_EXISTS"
	ErrorCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrorCodeImmutableSetting ErrorCode = "IMMUTABLE_SETTING"

	// Server Error Codes (5xx)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeSearchTimeout ErrorCode = "SEARCH_TIMEOUT"
)

// ErrorDetail provides additional context for an error
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// APIError represents a standardized API error response. Kind is the
// machine-readable error class; Code narrows it down.
type APIError struct {
	Error     string              `json:"error"`
	Kind      internalErrors.Kind `json:"kind"`
	Code      ErrorCode           `json:"code"`
	Message   string              `json:"message"`
	Details   []ErrorDetail       `json:"details,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	RequestID string              `json:"request_id,omitempty"`
}

// SendError sends a standardized error response with the status of kind.
func SendError(c *gin.Context, kind internalErrors.Kind, code ErrorCode, message string, details ...ErrorDetail) {
	errorResponse := &APIError{
		Error:     message,
		Kind:      kind,
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if requestID, exists := c.Get(requestIDKey); exists {
		if id, ok := requestID.(string); ok {
			errorResponse.RequestID = id
		}
	}
	c.AbortWithStatusJSON(internalErrors.HTTPStatus(kind), errorResponse)
}

// SendEngineError translates an engine error into its response.
func SendEngineError(c *gin.Context, operation string, err error) {
	kind := internalErrors.KindOf(err)
	switch kind {
	case internalErrors.KindNotFound:
		code := ErrorCodeIndexNotFound
		switch {
		case errors.Is(err, internalErrors.ErrDocumentNotFound):
			code = ErrorCodeDocumentNotFound
		case errors.Is(err, internalErrors.ErrJobNotFound):
			code = ErrorCodeJobNotFound
		}
		SendError(c, kind, code, err.Error())
	case internalErrors.KindValidation:
		SendError(c, kind, ErrorCodeValidationFailed, err.Error(), validationDetails(err)...)
	case internalErrors.KindConflict:
		SendError(c, kind, ErrorCodeIndexExists, err.Error())
	case internalErrors.KindTimeout:
		SendError(c, kind, ErrorCodeSearchTimeout, err.Error())
	default:
		logger.FromContext(c.Request.Context()).Error("Request failed", "operation", operation, "error", err)
		SendError(c, internalErrors.KindInternal, ErrorCodeInternalError, "Internal error during "+operation+": "+err.Error())
	}
}

func validationDetails(err error) []ErrorDetail {
	var validationErr *internalErrors.ValidationError
	if errors.As(err, &validationErr) && validationErr.Field != "" {
		return []ErrorDetail{{Field: validationErr.Field, Message: validationErr.Message}}
	}
	return nil
}

// SendValidationError sends a validation error with structured details
func SendValidationError(c *gin.Context, result *ValidationResult) {
	details := make([]ErrorDetail, len(result.Errors))
	for i, err := range result.Errors {
		details[i] = ErrorDetail{Field: err.Field, Message: err.Message}
	}
	message := "Request validation failed"
	if len(result.Errors) == 1 {
		message = result.Errors[0].Message
	}
	SendError(c, internalErrors.KindValidation, ErrorCodeValidationFailed, message, details...)
}

// SendInvalidJSONError sends a standardized invalid JSON error
func SendInvalidJSONError(c *gin.Context, err error) {
	SendError(c, internalErrors.KindValidation, ErrorCodeInvalidJSON, "Invalid JSON in request body: "+err.Error())
}
