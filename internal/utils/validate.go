package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/domestyx/internal/apperr"
)

var validate = newValidator()

var decimalPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and returns the first failure as a validation error.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return apperr.Validation("invalid_request", err.Error())
	}

	first := validationErrors[0]
	field := first.Field()
	var msg string
	switch first.Tag() {
	case "required":
		msg = fmt.Sprintf("field '%s' is required", field)
	case "email":
		msg = fmt.Sprintf("field '%s' must be a valid email address", field)
	case "min":
		msg = fmt.Sprintf("field '%s' must be at least %s", field, first.Param())
	case "max":
		msg = fmt.Sprintf("field '%s' must be at most %s", field, first.Param())
	case "oneof":
		msg = fmt.Sprintf("field '%s' must be one of: %s", field, first.Param())
	case "uuid":
		msg = fmt.Sprintf("field '%s' must be a valid UUID", field)
	default:
		msg = fmt.Sprintf("field '%s' failed on '%s'", field, first.Tag())
	}
	return apperr.Validation("invalid_"+field, msg)
}

// IsEmail reports whether value is a syntactically valid e-mail address.
func IsEmail(value string) bool {
	return validate.Var(value, "required,email") == nil
}

// NormalizeDecimal validates a monetary amount and returns it as a trimmed decimal string.
// Empty input yields nil.
func NormalizeDecimal(field, value string) (*string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if !decimalPattern.MatchString(value) {
		return nil, apperr.Validation("invalid_"+field, fmt.Sprintf("field '%s' must be a decimal amount with at most 2 fraction digits", field))
	}
	return &value, nil
}
