package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PlainTextErrorHandler renders errors as a status code with a text/plain
// message body instead of echo's default JSON envelope. Internal errors
// never leak their cause to the client.
func PlainTextErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.String(code, msg)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
