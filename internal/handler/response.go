package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/logger"
	"github.com/iliyamo/account-service/internal/service"
)

// Envelope wraps every JSON response.  Result is set on success; Message and
// Errors on failure.
type Envelope struct {
	IsSuccess bool         `json:"isSuccess"`
	Code      int          `json:"code"`
	Timestamp time.Time    `json:"timestamp"`
	Result    interface{}  `json:"result,omitempty"`
	Message   string       `json:"message,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type message struct {
	Message string `json:"message"`
}

// ok writes a success envelope.
func ok(c echo.Context, code int, result interface{}) error {
	return c.JSON(code, Envelope{IsSuccess: true, Code: code, Timestamp: time.Now().UTC(), Result: result})
}

// statusFor maps an error to the HTTP status and the message shown to the
// client.  Errors of no known kind become 500 with a generic message.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, isStr := he.Message.(string); isStr {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// ErrorHandler renders every error returned by handlers and middleware as an
// error envelope.  Causes of 500s are logged, never returned.
func ErrorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		env := Envelope{Timestamp: time.Now().UTC()}

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			env.Code = http.StatusBadRequest
			env.Message = "validation failed"
			env.Errors = fieldErrors(verrs)
		} else {
			env.Code, env.Message = statusFor(err)
		}
		if env.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(env.Code)
		} else {
			werr = c.JSON(env.Code, env)
		}
		if werr != nil {
			log.Warn().Err(werr).Msg("write error response")
		}
	}
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "strongpassword":
		return "must be at least 8 characters and contain upper and lower case letters, a digit and a symbol"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}
