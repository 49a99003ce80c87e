package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses an incoming request id or assigns a new one, and echoes
// it on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

type Recorder interface {
	HTTPRequest(route, method string, status int, elapsed time.Duration)
}

// Observe records and logs every request once the response status is known.
// Errors are rendered here so the status reflects the error handler.
func Observe(rec Recorder, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		elapsed := time.Since(start)
		status := c.Response().StatusCode()

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		if rec != nil {
			rec.HTTPRequest(route, c.Method(), status, elapsed)
		}
		logger.Info("request",
			"method", c.Method(),
			"route", route,
			"status", status,
			"elapsed", elapsed.String(),
			"request_id", c.Locals("request_id"),
		)
		return nil
	}
}
