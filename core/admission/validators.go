package admission

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

// InitValidators registers the admission validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, "application_status", "invalid status", Statuses)
	core.RegisterOneOf(validate, translator, "document_kind", "invalid document kind", DocKinds)
}
