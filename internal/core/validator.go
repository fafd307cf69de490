package core

import (
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"meterboard/internal/types"
)

// Validator wraps go-playground/validator so handlers get AppErrors with
// field-level details instead of raw validator errors.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct runs struct-tag validation on req. On failure it returns a
// *types.AppError with code validation_invalid_parameter (400) carrying a
// field -> constraint map in Details; internal validator errors (invalid
// argument types) map to an internal error instead.
func (v *Validator) ValidateStruct(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	if invalid, ok := err.(*validator.InvalidValidationError); ok {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request validation could not be performed",
			invalid,
		)
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request validation failed unexpectedly",
			err,
		)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		constraint := fe.Tag()
		if fe.Param() != "" {
			constraint += "=" + fe.Param()
		}
		details[strings.ToLower(fe.Field())] = constraint
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationInvalidParam,
		"request validation failed",
		nil,
		details,
	)
}
