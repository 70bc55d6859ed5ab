package messaging

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/user"
)

var (
	audienceTag  = "channel_audience"
	audienceText = "audience must be a role or a role prefix"
)

// InitValidators registers the messaging validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(audienceTag, audienceValidation)
	core.RegisterCustomTranslation(validate, translator, audienceTag, audienceText)
}

// audienceValidation accepts any prefix of a known role, eg. `student:` or `admin:`.
func audienceValidation(fl validator.FieldLevel) bool {
	audience := fl.Field().String()
	for _, role := range user.AllRoles {
		if strings.HasPrefix(role, audience) && strings.Contains(audience, ":") {
			return true
		}
	}
	return false
}
