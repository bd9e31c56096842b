package index

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
)

// Index
// @Summary     Show The Status of The Server
// @Description Liveness probe
// @Tags        Root
// @Produce     json
// @Success     200
// @Router      / [get]
func Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "Telegram to WhatsApp radar relay is running")
}
