package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/issue-tracker/internal/apperror"
)

// validate is shared across handlers; validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct tags and converts the first failure into a
// field-level validation error the response layer knows how to render.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.ValidationFailed(fe.Field(),
			fmt.Sprintf("failed on %q validation", fe.Tag()))
	}
	return apperror.ValidationFailed("body", "invalid request body")
}
