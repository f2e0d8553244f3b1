package logservice

import (
	"fmt"
	"strings"

	"github.com/kerlexov/logcollector/pkg/validation"
)

// ValidationError reports a submission or query parameter rejected before reaching the store
type ValidationError struct {
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	messages := make([]string, len(e.Fields))
	for i, field := range e.Fields {
		messages[i] = field.Message
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

func newFieldError(field, value, message string) *ValidationError {
	return &ValidationError{
		Fields: []validation.FieldError{{Field: field, Value: value, Message: message}},
	}
}

// PersistenceError reports a failed store operation
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
