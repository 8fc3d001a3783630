package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ErrorHandler renders apperr and echo errors as ErrorBody. Internal errors
// are logged with the request id and reported with a generic message plus
// the underlying text.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func render(err error) (int, ErrorBody) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body := ErrorBody{Error: ae.Message}
		if ae.Kind == apperr.KindInternal {
			body.Error = "internal server error"
			body.Message = ae.Error()
		} else if ae.Err != nil && !errors.Is(ae.Err, apperr.ErrVersionConflict) {
			body.Message = ae.Err.Error()
		}
		return ae.Status(), body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprintf("%v", he.Message)
		if he.Internal != nil {
			return he.Code, ErrorBody{Error: msg, Message: he.Internal.Error()}
		}
		return he.Code, ErrorBody{Error: msg}
	}

	return http.StatusInternalServerError, ErrorBody{Error: "internal server error", Message: err.Error()}
}
