package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ridecast/internal/types"
)

// validWeekdays accepts the lowercase day names stored in commute schedules.
// Matching is case-insensitive to mirror Rider.CommutesOn.
var validWeekdays = map[string]struct{}{
	"monday":    {},
	"tuesday":   {},
	"wednesday": {},
	"thursday":  {},
	"friday":    {},
	"saturday":  {},
	"sunday":    {},
}

// Validator wraps go-playground/validator with the request-level rules the
// API needs: JSON field names in error output, a weekday tag for commute
// schedules, and an ordering rule on hour windows.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds the configured validator. Panics on registration
// failure since that only happens with a programming error.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so error details match what the
	// client actually sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("weekday", validateWeekday); err != nil {
		panic(fmt.Sprintf("register weekday validation: %v", err))
	}

	v.RegisterStructValidation(validateHourWindow, types.HourWindow{})

	return &Validator{validate: v, logger: logger}
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, ok := validWeekdays[strings.ToLower(fl.Field().String())]
	return ok
}

// validateHourWindow rejects inverted windows at the API boundary. Stored
// windows are therefore always start <= end, though evaluation code still
// tolerates bad data defensively.
func validateHourWindow(sl validator.StructLevel) {
	w := sl.Current().Interface().(types.HourWindow)
	if w.EndHour < w.StartHour {
		sl.ReportError(w.EndHour, "end_hour", "EndHour", "gtefield", "start_hour")
	}
}

// ValidateStruct runs the registered rules against s and converts failures
// into a single AppError whose code reflects the first violation and whose
// details list every violated field.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		// Non-ValidationErrors means s was not a validatable struct, which
		// is a bug in the handler, not bad client input.
		v.logger.Error("validator received invalid input", slog.String("error", err.Error()))
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request could not be validated", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[fieldPath(fe)] = describeRule(fe)
	}

	return types.NewAppErrorWithDetails(
		codeForViolation(validationErrs[0]),
		"request validation failed",
		err,
		details,
	)
}

// Var validates a single value against a tag expression, for query
// parameters and other values outside request structs.
func (v *Validator) Var(value any, tag string) error {
	return v.validate.Var(value, tag)
}

// fieldPath strips the root struct name from the namespace, leaving paths
// like "locations[0].lat".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeRule(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("must satisfy %s", fe.Tag())
}

// codeForViolation picks the most specific error code for a violation, first
// by rule, then by field name.
func codeForViolation(fe validator.FieldError) types.ErrorCode {
	switch fe.Tag() {
	case "email":
		return types.ErrCodeValidationInvalidEmail
	case "timezone":
		return types.ErrCodeValidationInvalidTimezone
	case "weekday":
		return types.ErrCodeValidationInvalidDay
	}

	switch fe.Field() {
	case "lat":
		return types.ErrCodeValidationInvalidLat
	case "lon":
		return types.ErrCodeValidationInvalidLon
	case "start_hour", "end_hour":
		return types.ErrCodeValidationHourWindow
	}

	return types.ErrCodeValidationMissingField
}
