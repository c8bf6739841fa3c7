package utils

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	hhmmRe = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$|^24:00$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the project's custom tags:
//
//	hhmm - strict 24-hour "HH:mm", "24:00" allowed as end-of-day
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmmRe.MatchString(fl.Field().String())
		})
	})
	return validate
}
