package academics

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

var (
	courseLevelTag  = "course_level"
	courseLevelText = "invalid course level"
)

// InitValidators registers the academics validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, courseLevelTag, courseLevelText, Levels)
}
