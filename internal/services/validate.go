package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
)

var validate = validator.New()

func validateInput(in any) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrInvalidArgument, err)
	}
	return nil
}

func normalizeTerm(term string) string {
	return strings.TrimSpace(term)
}
