package contracts

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ⭐ SSOT: 구조체 검증기는 여기서만 생성
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation and wraps failures in ErrInvalidInput
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
