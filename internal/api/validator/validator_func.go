package validator

import (
	"net/mail"

	"github.com/go-playground/validator/v10"
)

const (
	AddressTag = "address"
)

var valid = map[string]func(fl validator.FieldLevel) bool{
	AddressTag: ValidateAddress,
}

// ValidateAddress accepts RFC 5322 addresses, display names included.
func ValidateAddress(fl validator.FieldLevel) bool {
	_, err := mail.ParseAddress(fl.Field().String())
	return err == nil
}
