package service

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "studytrack/backend/internal/errors"
)

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
	// halfstep accepts multiples of 0.5.
	_ = v.RegisterValidation("halfstep", func(fl validator.FieldLevel) bool {
		value := fl.Field().Float()
		return math.Mod(value*2, 1) == 0
	})
	return v
}

// validationError turns validator failures into a 400 listing the failing
// rule per field.
func validationError(err error) *apperrors.APIError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.BadRequest("validation_failed", err.Error())
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.Validation(details)
}
