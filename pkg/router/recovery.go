package router

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

// RecoveryMiddleware converts panics into the JSON envelope.
// It must be registered before application routes.
func RecoveryMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				message := fmt.Sprintf("%v", rec)
				log.Print(c).Error("panic recovered: " + message)
				err = c.Status(fiber.StatusInternalServerError).JSON(Response{
					Code:    fiber.StatusInternalServerError,
					Message: message,
					Error:   message,
				})
			}
		}()
		return c.Next()
	}
}
