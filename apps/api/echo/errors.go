package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// domain errors and their HTTP status; the first match wins
var errorStatuses = []struct {
	err  error
	code int
}{
	{user.ErrUnauthenticated, http.StatusUnauthorized},
	{user.ErrRoleMissing, http.StatusForbidden},
	{user.ErrUnknownRole, http.StatusForbidden},
	{user.ErrInsufficientPermissions, http.StatusForbidden},
	{access.ErrNoTenantAccess, http.StatusForbidden},
	{access.ErrTenantAccessDenied, http.StatusForbidden},
	{school.ErrNotFound, http.StatusNotFound},
}

// domainError returns the status and public message of a domain error.
func domainError(err error) (int, string, bool) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			return es.code, es.err.Error(), true
		}
	}
	return 0, "", false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if dCode, dMsg, ok := domainError(err); ok {
			code, message = dCode, dMsg
		} else {
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
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg), map[string]interface{}{
					"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
					"path":       ctx.Path(),
				}}
				if usr, uErr := getContextUser(ctx); uErr == nil {
					args = append(args, usr)
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
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
