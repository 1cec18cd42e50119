package activity

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/atomcode/atomq/core"
)

var (
	statusTag  = "activitystatus"
	statusText = "status must be one of " + strings.Join(AllStatuses, ", ")

	timeRangeTag  = "timerange"
	timeRangeText = "end time must be after start time"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(AllStatuses...))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(activityStructValidation, NewActivity{})
	core.RegisterCustomTranslation(validate, translator, timeRangeTag, timeRangeText)
}

func activityStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewActivity)
	if !ok {
		return
	}
	if na.StartTime != nil && na.EndTime != nil && !na.EndTime.After(*na.StartTime) {
		sl.ReportError(na.EndTime, "endTime", "EndTime", timeRangeTag, "")
	}
}
