package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// RouteLogger logs each request entry and exit with duration, trace ID, and
// the reconciliation session the request belongs to.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		sessionID := GetSessionID(c)
		start := time.Now()
		log.Info().
			Str("trace_id", traceID).
			Str("session_id", sessionID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("Request received")
		err := c.Next()
		log.Info().
			Str("trace_id", traceID).
			Str("session_id", sessionID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Int64("ms", time.Since(start).Milliseconds()).
			Msg("Request completed")
		return err
	}
}
