package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	accessKeyTag   = "accesskey"
	accessKeyText  = "access key may only contain letters, digits, '-' and '_' (3 to 32 characters)"
	accessKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(accessKeyTag, accessKeyValidation)
	RegisterCustomTranslation(validate, translator, accessKeyTag, accessKeyText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// OneOfValidation builds a validator.Func accepting only the given string values.
func OneOfValidation(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, v := range values {
			if val == v {
				return true
			}
		}
		return false
	}
}

// Custom Global Validators

// accessKeyValidation only allows short codes made of letters, digits, dashes and underscores.
func accessKeyValidation(fl validator.FieldLevel) bool {
	return accessKeyRegex.MatchString(fl.Field().String())
}
