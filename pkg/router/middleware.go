package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

func HttpRealIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
			c.Locals("remote_ip", strings.TrimSpace(strings.Split(forwarded, ",")[0]))
		} else if realIP := c.Get("X-Real-IP"); realIP != "" {
			c.Locals("remote_ip", strings.TrimSpace(realIP))
		}
		return c.Next()
	}
}

// HttpRequestID reuses the caller's request id or generates one, and
// echoes it back.
func HttpRequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}
