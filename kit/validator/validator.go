package validator

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Verify runs struct-tag validation over req.
func Verify(req interface{}) error {
	return validate.Struct(req)
}
