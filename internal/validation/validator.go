package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a field name to the list of constraint violations
// reported for it. An empty map means the input passed.
type FieldErrors map[string][]string

// Add appends a message for the given field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Empty reports whether no violations were recorded.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Validator wraps go-playground/validator and renders violations as
// per-field human-readable messages.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator using struct tag rules.
func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Struct validates a tagged struct and returns the violations keyed by the
// lower-cased field name.
func (val *Validator) Struct(i any) FieldErrors {
	fields := FieldErrors{}
	err := val.v.Struct(i)
	if err == nil {
		return fields
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		fields.Add("_", err.Error())
		return fields
	}
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())
		fields.Add(field, fieldMessage(field, fe))
	}
	return fields
}

// fieldMessage converts a single violation into a human-readable message.
func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s field must be one of: %s.", field, strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return fmt.Sprintf("The %s field is invalid (%s).", field, fe.Tag())
	}
}
