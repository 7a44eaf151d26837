package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"climarisk/internal/types"
)

// Validator wraps go-playground/validator with the domain's request rules
// and translates failures into structured AppErrors.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// condition_category accepts only the five canonical categories.
	_ = v.RegisterValidation("condition_category", func(fl validator.FieldLevel) bool {
		return types.ConditionCategory(fl.Field().String()).Valid()
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct runs the registered rules against the request struct and
// maps the first failure to a field-specific validation error code.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField, "invalid request", err)
	}

	first := errs[0]
	return types.NewAppErrorWithDetails(
		codeForField(first),
		"validation failed on field "+first.Field(),
		err,
		map[string]any{
			"field": first.Field(),
			"rule":  first.Tag(),
		},
	)
}

// codeForField picks the error code that matches the failed field so clients
// get actionable codes instead of a generic validation failure.
func codeForField(fe validator.FieldError) types.ErrorCode {
	switch fe.Field() {
	case "Latitude", "Lat":
		return types.ErrCodeValidationInvalidLat
	case "Longitude", "Lon":
		return types.ErrCodeValidationInvalidLon
	case "Date", "StartDate", "EndDate":
		return types.ErrCodeValidationInvalidDate
	case "Category":
		return types.ErrCodeValidationInvalidCategory
	case "Value", "Operator", "Thresholds":
		return types.ErrCodeValidationThreshold
	default:
		return types.ErrCodeValidationMissingField
	}
}
