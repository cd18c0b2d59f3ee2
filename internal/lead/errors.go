package lead

import (
	"fmt"
	"strings"

	"lead-dispatch/internal/common/errors"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem of one submission.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid lead: " + strings.Join(parts, "; ")
}

// Standard converts the error into the shared taxonomy.
func (e *ValidationError) Standard() *errors.StandardError {
	stdErr := errors.NewValidationFailureError(e.Error())
	stdErr.Metadata = map[string]interface{}{"fields": e.Fields}
	return stdErr
}
