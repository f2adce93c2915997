package treatment

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

const DurationStep = 5 // minutes

var (
	durationStepTag  = "duration_step"
	durationStepText = fmt.Sprintf("duration must be a multiple of %d minutes", DurationStep)
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(durationStepTag, func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%DurationStep == 0
	})
	core.RegisterCustomTranslation(validate, translator, durationStepTag, durationStepText)
}
