package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/auth"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/quiz"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	errRegistrationDisabled = echo.NewHTTPError(http.StatusForbidden, "Registration is currently disabled")
)

// errorStatus maps domain errors to their HTTP status.
var errorStatus = map[error]int{
	auth.ErrInvalidCredentials:   http.StatusUnauthorized,
	auth.ErrMaintenance:          http.StatusForbidden,
	user.ErrNotFound:             http.StatusNotFound,
	settings.ErrNotFound:         http.StatusNotFound,
	activity.ErrNotFound:         http.StatusNotFound,
	activity.ErrInvalidAccessKey: http.StatusNotFound,
	activity.ErrNotParticipant:   http.StatusForbidden,
	activity.ErrSessionNotFound:  http.StatusNotFound,
	question.ErrNotFound:         http.StatusNotFound,
	question.ErrGroupNotFound:    http.StatusNotFound,
	question.ErrReportNotFound:   http.StatusNotFound,
	quiz.ErrNotFound:             http.StatusNotFound,
	quiz.ErrNotEnrolled:          http.StatusForbidden,
	quiz.ErrEnrollmentNotFound:   http.StatusNotFound,
	quiz.ErrAttemptNotFound:      http.StatusNotFound,
}

// domainStatus looks err up in errorStatus. errors.Is skips the equality check for
// non-comparable error types, which would make a direct map lookup panic.
func domainStatus(err error) (int, bool) {
	for target, status := range errorStatus {
		if errors.Is(err, target) {
			return status, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Every error body carries an "error" message; validation errors add per-field messages under "fields".
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = echo.Map{"error": origErr[0].Translate(translator), "fields": fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				msg := origErr.Error()
				if msg == "" {
					msg = origErr.Fields[0].Error
				}
				message = echo.Map{"error": msg, "fields": fldErrs}
			} else {
				message = origErr.Error()
			}
		case *auth.LockedError:
			code = http.StatusTooManyRequests
			message = origErr.Error()
		default:
			if status, ok := domainStatus(origErr); ok {
				code = status
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.Summary
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = user.Summary{ID: claims.Subject, Name: claims.Name, Email: claims.Email}
			}
			logger.Error(msg, errors.Wrap(err, msg), usr, ctx.Request())

			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
