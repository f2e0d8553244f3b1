package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kerlexov/logcollector/pkg/logservice"
	"github.com/kerlexov/logcollector/pkg/validation"
	"go.uber.org/zap"
)

// Error codes carried in the error envelope
const (
	CodeInvalidJSON     = "INVALID_JSON"
	CodeValidation      = "VALIDATION_ERROR"
	CodePersistence     = "PERSISTENCE_ERROR"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func abortWithError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}

// respondServiceError maps log service errors onto status codes
func (s *Server) respondServiceError(c *gin.Context, err error) {
	var validationErr *logservice.ValidationError
	var persistenceErr *logservice.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		abortWithError(c, http.StatusBadRequest, CodeValidation, "Request validation failed", validationErr.Fields)
	case errors.As(err, &persistenceErr):
		c.Error(err)
		abortWithError(c, http.StatusInternalServerError, CodePersistence,
			fmt.Sprintf("Failed to %s logs", persistenceErr.Op), nil)
	default:
		c.Error(err)
		s.logger.Error("unexpected service error", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "An internal server error occurred", nil)
	}
}

// respondBindError maps a request body decoding failure. Well-formed JSON
// with a wrongly typed field is a validation failure, not a syntax error.
func (s *Server) respondBindError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	var timeErr *time.ParseError

	switch {
	case errors.As(err, &maxBytesErr):
		abortWithError(c, http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "Request body too large",
			fmt.Sprintf("Request body cannot exceed %d bytes", maxBytesErr.Limit))
	case errors.As(err, &typeErr):
		s.metrics.IncrementValidationErrors()
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		abortWithError(c, http.StatusBadRequest, CodeValidation, "Request validation failed", []validation.FieldError{{
			Field:   field,
			Value:   typeErr.Value,
			Message: fmt.Sprintf("%s must be of type %s", field, typeErr.Type),
		}})
	case errors.As(err, &timeErr):
		s.metrics.IncrementValidationErrors()
		abortWithError(c, http.StatusBadRequest, CodeValidation, "Request validation failed", []validation.FieldError{{
			Field:   "timestamp",
			Value:   timeErr.Value,
			Message: "timestamp must be an RFC 3339 date-time",
		}})
	default:
		abortWithError(c, http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON format", err.Error())
	}
}
