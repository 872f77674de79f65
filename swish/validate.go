package swish

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gaborage/go-swish/clienterr"
)

// MaxMessageLength is the longest message the provider displays to the payer.
const MaxMessageLength = 50

const (
	minAgeLimit = 1
	maxAgeLimit = 99
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(v, "amount", func(fl validator.FieldLevel) bool {
		return isPositiveAmount(fl.Field().String())
	})
	mustRegister(v, "agelimit", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= minAgeLimit && n <= maxAgeLimit
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func isPositiveAmount(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && f > 0
}

// validateRequest checks a request struct and returns a validation error
// naming the first offending field.
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return clienterr.NewValidationError("request is invalid", err)
	}
	return clienterr.NewValidationError(fieldMessage(verrs[0]), verrs)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " must not be empty"
	case "amount":
		return fmt.Sprintf("%s must be a positive numeric value, got: %v", field, fe.Value())
	case "https_url":
		return field + " must use HTTPS scheme"
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "agelimit":
		return fmt.Sprintf("%s must be between %d and %d", field, minAgeLimit, maxAgeLimit)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return clienterr.NewValidationError(kind+" ID must not be empty", nil)
	}
	return nil
}
