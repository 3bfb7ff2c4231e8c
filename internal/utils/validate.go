package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct checks s against its validate tags and flattens failures
// into "field tag" pairs keyed by json name.
func ValidateStruct(s interface{}) error {
	return flatten(validate.Struct(s))
}

// ValidatePhone checks that phone is an E.164 number.
func ValidatePhone(phone string) error {
	if err := validate.Var(phone, "required,e164"); err != nil {
		return fmt.Errorf("phone must be in E.164 format")
	}
	return nil
}

func flatten(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	var invalidValidationError *validator.InvalidValidationError

	switch {
	case errors.As(err, &validationErrors):
		parts := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			parts = append(parts, fmt.Sprintf("%s %s", fieldErr.Field(), fieldErr.Tag()))
		}
		return errors.New(strings.Join(parts, "; "))
	case errors.As(err, &invalidValidationError):
		return fmt.Errorf("invalid validation error: %w", err)
	default:
		return fmt.Errorf("unknown validation error: %w", err)
	}
}
