package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddelware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestLogger logs one line per request through zerolog, raising the level
// for client and server errors.
func RequestLogger() echo.MiddlewareFunc {
	return echomiddelware.RequestLoggerWithConfig(echomiddelware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomiddelware.RequestLoggerValues) error {
			level := zerolog.InfoLevel
			if v.Status >= http.StatusInternalServerError {
				level = zerolog.ErrorLevel
			} else if v.Status >= http.StatusBadRequest {
				level = zerolog.WarnLevel
			}

			log.Ctx(c.Request().Context()).WithLevel(level).
				Str("Method", v.Method).
				Str("URI", v.URI).
				Str("RemoteIP", v.RemoteIP).
				Int("StatusCode", v.Status).
				Dur("Duration", v.Latency).
				Str("RequestID", v.RequestID).
				Err(v.Error).
				Send()
			return nil
		},
	})
}

// SetContentType returns a middleware that forces the response content type.
func SetContentType(contentType string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderContentType, contentType)
			return next(c)
		}
	}
}
