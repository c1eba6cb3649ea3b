// Package validate turns struct tag validation failures into client errors.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"snw-store/internal/apperr"
)

const invalidMessage = "Dados inválidos"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Struct validates v and returns an apperr validation error listing every
// failing field, or nil.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Internal(fmt.Errorf("validate: %w", err))
	}

	details := make([]apperr.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, apperr.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return apperr.Validation(invalidMessage, details...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Campo obrigatório"
	case "email":
		return "Email inválido"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Deve ter pelo menos %s caracteres", fe.Param())
		}
		return fmt.Sprintf("Deve ser no mínimo %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Deve ter no máximo %s caracteres", fe.Param())
		}
		return fmt.Sprintf("Deve ser no máximo %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Deve ser um de: %s", fe.Param())
	case "uuid", "uuid4", "uuid7":
		return "Identificador inválido"
	case "url", "http_url":
		return "URL inválida"
	default:
		return "Valor inválido"
	}
}
