package quiz

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/atomcode/atomq/core"
)

var (
	statusTag  = "quizstatus"
	statusText = "status must be one of " + strings.Join(AllStatuses, ", ")
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(AllStatuses...))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
