package core

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// Validator wraps go-playground/validator so handlers share one configured
// instance.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateStruct validates a request struct against its validate tags. Field
// failures come back as a 400 AppError carrying a field-to-rule map in
// Details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
		details,
	)
}
