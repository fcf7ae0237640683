package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/procsupervisor/internal/secret"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single struct-tag validation failure.
type FieldError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

func (e *FieldError) Field() string      { return e.field }
func (e *FieldError) Tag() string        { return e.tag }
func (e *FieldError) Param() string      { return e.param }
func (e *FieldError) Value() interface{} { return e.value }
func (e *FieldError) Error() string      { return e.message }

// ValidationErrors collects every FieldError from one ValidateStruct call.
type ValidationErrors struct {
	errors []FieldError
}

// Errors returns the individual field failures.
func (ve *ValidationErrors) Errors() []FieldError {
	return ve.errors
}

// Error implements the error interface with all field messages joined.
func (ve *ValidationErrors) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i, err := range ve.errors {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the singleton validator, initialized once with the
// supervisor's custom tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// secretlocation accepts any string that parses under the
		// "[PROVIDER:]<address>[!FORMAT][|JP:<path>]" grammar. Used on
		// env_locations/config_locations so a location with no address
		// fails at bootstrap instead of mid-resolution.
		_ = validate.RegisterValidation("secretlocation", func(fl validator.FieldLevel) bool {
			raw := fl.Field().String()
			if raw == "" {
				return false
			}
			_, err := secret.ParseLocation(raw)
			return err == nil
		})
	})
	return validate
}

// ValidateStruct validates s against its `validate:"..."` tags. Returns nil
// if validation passes, or *ValidationErrors otherwise.
func ValidateStruct(s interface{}) *ValidationErrors {
	v := GetValidator()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &ValidationErrors{errors: []FieldError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	fieldErrors := make([]FieldError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = FieldError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &ValidationErrors{errors: fieldErrors}
}

var errorMessageTemplates = map[string]string{
	"required":       "%s is required",
	"url":            "%s must be a valid URL",
	"secretlocation": "%s is not a valid secret location string",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return fmt.Sprintf("%s failed validation on tag %q", field, tag)
}
