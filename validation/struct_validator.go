// Package validation checks request structs with go-playground/validator
// tags and collects field errors into an errors.AppError whose details list
// every failing field. Messages are user-facing Polish.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/hvacform/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// phonePattern accepts digits with optional leading +, spaces, dashes and
// parentheses, 7 to 15 digits in total.
var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return toSnakeCase(fld.Name)
			}
			return name
		})
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return IsPhone(fl.Field().String())
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// IsPhone reports whether s looks like a phone number.
func IsPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// Validate validates a struct using tags like `validate:"required,email,max=255"`.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation(MsgInvalidRequest)
	}

	v := New()
	for _, e := range validationErrors {
		v.AddError(toSnakeCase(e.Field()), formatValidationError(e))
	}
	return v.Validate()
}

func formatValidationError(e validator.FieldError) string {
	if msg, ok := fieldMessages[e.Field()+"."+e.Tag()]; ok {
		return msg
	}
	switch e.Tag() {
	case "required", "notblank":
		return "pole jest wymagane"
	case "email":
		return "nieprawidłowy adres email"
	case "phone":
		return "nieprawidłowy numer telefonu"
	case "max":
		return "maksymalnie " + e.Param() + " znaków"
	case "uuid":
		return "nieprawidłowy identyfikator"
	case "oneof":
		return "dozwolone wartości: " + strings.Join(strings.Fields(e.Param()), ", ")
	default:
		return "nieprawidłowa wartość"
	}
}

// fieldMessages overrides the generic message for a field and tag pair.
var fieldMessages = map[string]string{
	"name.required": MsgNameRequired,
	"name.notblank": MsgNameRequired,
}

func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r + 32)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
