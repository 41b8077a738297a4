package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/publicapi/apimodels"
)

func CustomHTTPErrorHandler(err error, c echo.Context) {
	var (
		code      int
		message   string
		errorCode string
	)

	switch e := err.(type) {

	case *models.BaseError:
		// If it is already our custom error, use its code and message
		code = e.HTTPStatusCode()
		message = e.Error()
		errorCode = string(e.Code())

	case *echo.HTTPError:
		// This is needed, in case any other middleware throws an error. In
		// such a scenario we just use it as the error code and the message.
		// One such example being when request body size is larger than the
		// max size accepted
		code = e.Code
		message, _ = e.Message.(string)
		errorCode = string(models.InternalError)
		if c.Echo().Debug && e.Internal != nil {
			message += ". " + e.Internal.Error()
		}

	default:
		code = http.StatusInternalServerError
		message = "Internal server error"
		errorCode = string(models.InternalError)

		if c.Echo().Debug {
			message += ". " + err.Error()
		}
	}

	// Don't override the status code if it has already been set.
	// This is something that is advised by the echo framework.
	if !c.Response().Committed {
		apiError := apimodels.APIError{
			HTTPStatusCode: code,
			Message:        message,
			Code:           errorCode,
			RequestID:      c.Response().Header().Get(echo.HeaderXRequestID),
		}
		if err := c.JSON(code, apiError); err != nil {
			log.Ctx(c.Request().Context()).Err(err).Msg("failed to write error response")
		}
	}
}
