package kiosk

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dkalashnik/kiosk-survey/pkg/record"
)

type otherInput struct {
	EmployeeID string `validate:"required,digits"`
	Comment    string `validate:"required,min=3,max=200"`
}

var otherValidator = newOtherValidator()

func newOtherValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
	return v
}

// validateOther trims both inputs and returns the payload, or the inline
// message for the first failing field.
func validateOther(employee, comment string) (record.Other, string) {
	in := otherInput{
		EmployeeID: strings.TrimSpace(employee),
		Comment:    strings.TrimSpace(comment),
	}
	err := otherValidator.Struct(in)
	if err == nil {
		return record.Other{Employee: in.EmployeeID, Comment: in.Comment}, ""
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return record.Other{}, MsgInvalidEmployee
	}
	fe := fieldErrs[0]
	if fe.StructField() == "EmployeeID" {
		return record.Other{}, MsgInvalidEmployee
	}
	if fe.Tag() == "max" {
		return record.Other{}, MsgLongComment
	}
	return record.Other{}, MsgShortComment
}
