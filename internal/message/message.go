package message

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/internal/types"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/validation"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

// Relay sends arbitrary text into the destination group
// @Summary     Relay text
// @Description Sends text into the destination group regardless of the radar gate
// @Tags        Relay
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestRelay true "Text to relay"
// @Success     200
// @Failure     400
// @Failure     502
// @Failure     503
// @Security    AdminSecret
// @Router      /relay [post]
func Relay(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var reqRelay typWhatsApp.RequestRelay
		if err := c.BodyParser(&reqRelay); err != nil {
			log.Print(c).Warn("Failed to parse body request")
			return router.ResponseBadRequest(c, "Failed parse body request")
		}
		if err := validation.ValidateText(reqRelay.Text); err != nil {
			return router.ResponseBadRequest(c, err.Error())
		}

		if _, ok := bridge.Manager.Live(); !ok {
			return router.ResponseServiceUnavailable(c, pkgWhatsApp.ErrNotConnected.Error())
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), time.Minute)
		defer cancel()

		if !bridge.Relay.Forward(ctx, reqRelay.Text) {
			return router.ResponseBadGateway(c, "Relay failed")
		}
		return router.ResponseSuccessWithData(c, "Message relayed", typWhatsApp.ResponseRelay{
			Forwarded: true,
			Group:     bridge.Groups.Target(),
		})
	}
}
