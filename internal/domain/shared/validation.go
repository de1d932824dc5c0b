package shared

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationErrors is a list of human-readable form messages
type ValidationErrors []FieldMessage

// FieldMessage is one failed field with its message
type FieldMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, m := range v {
		parts = append(parts, m.Field+": "+m.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Messages returns only the message texts, in field order
func (v ValidationErrors) Messages() []string {
	out := make([]string, 0, len(v))
	for _, m := range v {
		out = append(out, m.Message)
	}
	return out
}

// Is lets callers test validation failures with errors.Is(err, ErrInvalidInput)
func (v ValidationErrors) Is(target error) bool {
	return errors.Is(ErrInvalidInput, target)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator, configured to report JSON field names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks v against its `validate` tags and returns ValidationErrors on failure.
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, FieldMessage{Field: e.Field(), Message: ValidationMessage(e)})
	}
	return out
}

// ValidationMessage returns a human-readable validation message
func ValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "eqfield":
		return "Must match " + e.Param()
	case "nefield":
		return "Must differ from " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "url":
		return "Invalid URL format"
	case "numeric":
		return "Must be numeric"
	case "e164":
		return "Invalid phone number"
	default:
		return "Invalid value"
	}
}
