package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and reports failures as
// domain.ErrValidation.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	fields := processValidationErrors(verrs)

	parts := make([]string, 0, len(fields))
	for field, tag := range fields {
		parts = append(parts, field+" ("+tag+")")
	}
	sort.Strings(parts)
	return domain.Validationf("invalid fields: %s", strings.Join(parts, ", "))
}

func processValidationErrors(verrs validator.ValidationErrors) map[string]string {
	res := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		res[ve.Namespace()] = ve.Tag()
	}
	return res
}
