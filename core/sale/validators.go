package sale

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

var (
	paymentMethodTag  = "payment_method"
	paymentMethodText = "invalid payment method"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentMethodTag, func(fl validator.FieldLevel) bool {
		pm := PaymentMethod(fl.Field().String())
		for _, known := range PaymentMethods {
			if pm == known {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)
}
