package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"tabashir/internal/api/middleware"
)

// requestLogger returns the correlation-scoped logger for the request,
// falling back to the handler's own logger.
func requestLogger(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
