package question

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/atomcode/atomq/core"
)

var (
	typeTag  = "questiontype"
	typeText = "type must be one of " + strings.Join(AllTypes, ", ")

	difficultyTag  = "difficulty"
	difficultyText = "difficulty must be one of " + strings.Join(AllDifficulties, ", ")

	reportStatusTag  = "reportstatus"
	reportStatusText = "status must be one of " + strings.Join(AllReportStatuses, ", ")

	optionsMinTag  = "optionsmin"
	optionsMinText = "at least 2 options are required"

	answerInOptionsTag  = "answerinoptions"
	answerInOptionsText = "correct answer must match the options"

	trueFalseOptions = []string{"True", "False"}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(typeTag, core.OneOfValidation(AllTypes...))
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)

	_ = validate.RegisterValidation(difficultyTag, core.OneOfValidation(AllDifficulties...))
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)

	_ = validate.RegisterValidation(reportStatusTag, core.OneOfValidation(AllReportStatuses...))
	core.RegisterCustomTranslation(validate, translator, reportStatusTag, reportStatusText)

	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, optionsMinTag, optionsMinText)
	core.RegisterCustomTranslation(validate, translator, answerInOptionsTag, answerInOptionsText)
}

// questionStructValidation checks options against the question type.
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}

	switch nq.Type {
	case TypeMultipleChoice, TypeMultiSelect:
		if len(nq.Options) < 2 {
			sl.ReportError(nq.Options, "options", "Options", optionsMinTag, "")
			return
		}
	case TypeTrueFalse:
		if len(nq.Options) == 0 {
			nq.Options = trueFalseOptions
		}
	default:
		return
	}

	if nq.CorrectAnswer == "" {
		return
	}
	answers := []string{nq.CorrectAnswer}
	if nq.Type == TypeMultiSelect {
		answers = splitSelection(nq.CorrectAnswer)
	}
	for _, a := range answers {
		if !contains(nq.Options, a) {
			sl.ReportError(nq.CorrectAnswer, "correctAnswer", "CorrectAnswer", answerInOptionsTag, "")
			return
		}
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
