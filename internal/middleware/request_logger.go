package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLoggerは1リクエスト1行のアクセスログを出す。
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			attrs := []any{
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", c.Response().Status),
				slog.Duration("latency", time.Since(start)),
			}

			//認証済みならuser_idも載せる
			if userID, ok := c.Get(CtxUserIDKey).(int64); ok && userID > 0 {
				attrs = append(attrs, slog.Int64("user_id", userID))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.Error("request", attrs...)
				return nil
			}

			logger.Info("request", attrs...)
			return nil
		}
	}
}
