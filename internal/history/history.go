package history

import (
	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/internal/types"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

func activity(c *fiber.Ctx, items []pkgWhatsApp.Activity) error {
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return router.ResponseSuccessWithData(c, "", typWhatsApp.ResponseActivity{Count: len(items), Items: items})
}

// Forwarded
// @Summary     Forwarded messages
// @Description Messages relayed into the group, newest first
// @Tags        Activity
// @Produce     json
// @Param       limit query int false "Maximum number of entries"
// @Success     200
// @Router      /activity/forwarded [get]
func Forwarded(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return activity(c, bridge.Relay.Forwarded())
	}
}

// Received
// @Summary     Received messages
// @Description Inbound WhatsApp text messages, newest first
// @Tags        Activity
// @Produce     json
// @Param       limit query int false "Maximum number of entries"
// @Success     200
// @Router      /activity/received [get]
func Received(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return activity(c, bridge.Relay.Received())
	}
}
