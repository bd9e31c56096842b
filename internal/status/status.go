package status

import (
	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/internal/types"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

// Status
// @Summary     Bridge status
// @Description Connection status, pairing challenge presence, destination group and radar state
// @Tags        Status
// @Produce     json
// @Success     200
// @Router      /status [get]
func Status(bridge *pkgWhatsApp.Bridge, telegramEnabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return router.ResponseSuccessWithData(c, "", typWhatsApp.ResponseStatus{
			BridgeSnapshot: bridge.Snapshot(),
			Telegram:       telegramEnabled,
		})
	}
}
