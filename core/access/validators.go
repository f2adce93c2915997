package access

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

var (
	permissionTag  = "permission"
	permissionText = "invalid permission"
)

// InitValidators registers the access validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(permissionTag, permissionValidation)
	core.RegisterCustomTranslation(validate, translator, permissionTag, permissionText)
}

func permissionValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Permission:
		return IsKnownPermission(v)
	case string:
		return IsKnownPermission(Permission(v))
	}
	return false
}
