package v1

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/tuition/internal/dictionary"
)

const payMethodTag = "paymethod"

// newValidator reports field errors by their JSON names and knows the payment method dictionary.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(payMethodTag, func(fl validator.FieldLevel) bool {
		return dictionary.IsPaymentMethod(fl.Field().String())
	})
	return v
}

// validationMessage turns the first validator failure into "field: reason".
func validationMessage(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err.Error()
	}
	fe := ves[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "email":
		return field + ": must be an email address"
	case payMethodTag:
		return field + ": unknown payment method"
	case "max":
		return field + ": must be at most " + fe.Param()
	case "min":
		return field + ": must be at least " + fe.Param()
	}
	return field + ": failed " + fe.Tag()
}

// check runs struct validation and writes a 400 on failure.
func (s *Server) check(w http.ResponseWriter, v any) bool {
	if err := s.validate.Struct(v); err != nil {
		badRequest(w, validationMessage(err))
		return false
	}
	return true
}
