package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const sep = " and "

type Error struct {
	Error       bool
	FailedField string
	Tag         string
	Value       interface{}
}

type IXValidator interface {
	Validate(data interface{}) []Error
	Message(errs []Error) string
}

type XValidator struct {
	validator *validator.Validate
}

func NewXValidator(v *validator.Validate) IXValidator {
	for key, function := range valid {
		v.RegisterValidation(key, function)
	}

	return &XValidator{validator: v}
}

func (x XValidator) Validate(data interface{}) []Error {
	var validationErrors []Error

	errs := x.validator.Struct(data)
	if errs != nil {
		for _, err := range errs.(validator.ValidationErrors) {
			var elem Error
			elem.FailedField = err.Field()
			elem.Tag = err.Tag()
			elem.Value = err.Value()
			elem.Error = true
			validationErrors = append(validationErrors, elem)
		}
	}
	return validationErrors
}

func (x XValidator) Message(errs []Error) string {
	errMsgs := make([]string, 0, len(errs))
	for _, err := range errs {
		errMsgs = append(errMsgs, fmt.Sprintf("field %s failed on %s", err.FailedField, err.Tag))
	}
	return strings.Join(errMsgs, sep)
}
