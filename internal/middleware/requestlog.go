package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/j0462/newspeed/internal/logging"
)

// RequestLogger writes one structured line per request.  Bodies and headers
// are never logged since they carry passwords and tokens.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_ip", v.RemoteIP,
				"account_id", accountID(c),
			}
			ctx := c.Request().Context()
			if v.Error != nil {
				log.Error(ctx, "request failed", append(args, "error", v.Error.Error())...)
				return nil
			}
			log.Info(ctx, "request", args...)
			return nil
		},
	})
}
