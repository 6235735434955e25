package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
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
			message = fldErrs
		case *core.ValidationError:
			message = fieldErrors(origErr)
			code = http.StatusBadRequest
		case *attendance.PolicyViolation:
			message = fieldErrors(origErr.ValidationError().(*core.ValidationError))
			code = http.StatusBadRequest
		default:
			switch {
			case origErr == attendance.ErrNotFound:
				code = http.StatusNotFound
				message = origErr.Error()
			case core.IsUpstreamUnavailable(origErr):
				code = http.StatusServiceUnavailable
				message = origErr.Error()
				logger.Warn("upstream unavailable", err, clientID(ctx))
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), clientID(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
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

func fieldErrors(vErr *core.ValidationError) interface{} {
	if vErr.Fields == nil {
		return vErr.Error()
	}
	fldErrs := make(map[string]string, len(vErr.Fields))
	for _, fErr := range vErr.Fields {
		fldErrs[fErr.Field] = fErr.Error
	}
	return fldErrs
}

// clientID attributes errors to the calling client when the request names one.
func clientID(ctx echo.Context) core.ClientID {
	if id, ok := ctx.Get(clientIDKey).(string); ok {
		return core.ClientID(id)
	}
	return core.ClientID(ctx.QueryParam("client_id"))
}
