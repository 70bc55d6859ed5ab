package library

import (
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

var (
	isbnTag  = "isbn_"
	isbnText = "invalid ISBN"

	lteCopiesTag  = "ltecopies"
	lteCopiesText = "cannot be greater than the number of copies"
)

// InitValidators registers the library validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(isbnTag, func(fl validator.FieldLevel) bool {
		return ValidISBN(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, isbnTag, isbnText)

	_ = validate.RegisterValidation(lteCopiesTag, lteCopiesValidation)
	core.RegisterCustomTranslation(validate, translator, lteCopiesTag, lteCopiesText)
}

// lteCopiesValidation checks that the field does not exceed the Copies field of the same struct.
func lteCopiesValidation(fl validator.FieldLevel) bool {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	copies := parent.FieldByName("Copies")
	if !copies.IsValid() {
		return false
	}
	return fl.Field().Int() <= copies.Int()
}
