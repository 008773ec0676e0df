package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	roleTag  = "role"
	roleText = "role must be one of superadmin, admin, teacher, student or parent"
)

// InitValidators registers the user validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

// roleValidation checks that the field is one of AllRoles.
func roleValidation(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}
