// Package requests contains HTTP request DTOs for the physio-api.
package requests

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"physio-server/services/physio-api/internal/utils/platformerrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// BindJSON decodes the body into dst and validates it. Failures are
// validation platform errors naming the offending fields.
func BindJSON(c *gin.Context, dst any) error {
	ctx := c.Request.Context()
	if err := c.ShouldBindJSON(dst); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRoute, platformerrors.ErrorTypeValidation, "invalid request body", err, "")
	}
	if err := validate.Struct(dst); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRoute, platformerrors.ErrorTypeValidation, describe(err), err, "")
	}
	return nil
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_if":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
