package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kerlexov/logcollector/pkg/models"
)

// SubmissionValidator validates inbound log submissions
type SubmissionValidator struct {
	validator *validator.Validate
}

// NewSubmissionValidator creates a new submission validator
func NewSubmissionValidator() *SubmissionValidator {
	v := validator.New()

	// Report JSON field names rather than Go struct field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("notblank", validateNotBlank)
	v.RegisterValidation("json_document", validateJSONDocument)

	return &SubmissionValidator{
		validator: v,
	}
}

// ValidateSubmission validates a single submission with detailed error reporting
func (sv *SubmissionValidator) ValidateSubmission(submission *models.Submission) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]FieldError, 0),
	}

	if submission == nil {
		result.IsValid = false
		result.Errors = append(result.Errors, FieldError{
			Field:   "body",
			Message: "body is required",
		})
		return result
	}

	if err := sv.validator.Struct(submission); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldError := range validationErrors {
				result.Errors = append(result.Errors, FieldError{
					Field:   fieldError.Field(),
					Value:   truncate(fmt.Sprintf("%v", fieldError.Value()), 64),
					Message: getValidationMessage(fieldError),
				})
			}
		} else {
			result.Errors = append(result.Errors, FieldError{
				Field:   "body",
				Message: err.Error(),
			})
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidationResult represents the result of validating a single submission
type ValidationResult struct {
	IsValid bool         `json:"is_valid"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a single validation error
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func validateNotBlank(fl validator.FieldLevel) bool {
	// Whitespace-only values count as missing
	return len(strings.TrimSpace(fl.Field().String())) > 0
}

func validateJSONDocument(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Len() == 0 {
		return true
	}
	return json.Valid(field.Bytes())
}

// getValidationMessage returns a human-readable validation error message
func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required and cannot be empty", fe.Field())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", fe.Field(), fe.Param())
	case "json_document":
		return fmt.Sprintf("%s must be well-formed JSON", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
