package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"clubtickets/entity"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return requestValidator{validate: v}
}

func (v requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fieldErr := fieldErrs[0]
		return entity.NewValidationError(fieldErr.Field(), "failed on the '"+fieldErr.Tag()+"' rule")
	}
	return err
}

func bindAndValidate(c echo.Context, request any) error {
	if err := c.Bind(request); err != nil {
		return entity.NewValidationError("", "invalid request body")
	}
	return c.Validate(request)
}
