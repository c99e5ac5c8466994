package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return isValidSlug(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return isValidPhone(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct tags of req and reports the first failing
// field as an ErrValidation
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return invalid("%s: %s", fieldName(fe), ruleMessage(fe))
	}
	return invalid("%v", err)
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "invalid email format"
	case "slug":
		return "invalid slug format"
	case "phone":
		return "invalid phone number"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag()
}

// isValidSlug checks ^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$
func isValidSlug(slug string) bool {
	if len(slug) < 1 || len(slug) > 63 {
		return false
	}
	for i, r := range slug {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if i == 0 || i == len(slug)-1 {
			if !alnum {
				return false
			}
		} else if !alnum && r != '-' {
			return false
		}
	}
	return true
}

// isValidPhone accepts 10 to 13 digits once spaces, dashes, dots, parentheses
// and a leading + are stripped (Brazilian numbers with or without country code)
func isValidPhone(phone string) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		case r == '+' && i == 0:
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 13
}
