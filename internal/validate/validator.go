package validate

import (
	"reviewpulse/internal/domain"

	"github.com/go-playground/validator/v10"
)

// CustomValidator implements echo.Validator using go-playground/validator and
// knows the closed review enums through the "sentiment" and "topic" tags.
type CustomValidator struct {
	v *validator.Validate
}

func New() *CustomValidator {
	v := validator.New()
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("sentiment", func(fl validator.FieldLevel) bool {
		return domain.Sentiment(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("topic", func(fl validator.FieldLevel) bool {
		return domain.Topic(fl.Field().String()).Valid()
	})
	return &CustomValidator{v: v}
}

// Validate performs struct validation.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}
