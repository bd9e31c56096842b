package groups

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/internal/types"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

// Announce
// @Summary     Re-resolve the group and announce the radar state
// @Description Resolves the destination group again and sends the current radar state even if it was already announced
// @Tags        Group
// @Produce     json
// @Success     200
// @Failure     404
// @Failure     503
// @Security    AdminSecret
// @Router      /group/announce [post]
func Announce(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), time.Minute)
		defer cancel()

		group, sent, err := bridge.Notifier.Reannounce(ctx)
		switch {
		case errors.Is(err, pkgWhatsApp.ErrNotConnected):
			return router.ResponseServiceUnavailable(c, err.Error())
		case errors.Is(err, pkgWhatsApp.ErrGroupNotFound):
			return router.ResponseNotFound(c, err.Error())
		case err != nil:
			log.Print(c).WithError(err).Error("Group announce failed")
			return router.ResponseBadGateway(c, err.Error())
		}

		return router.ResponseSuccessWithData(c, "Group announced", typWhatsApp.ResponseAnnounce{
			Group: group,
			Radar: bridge.Notifier.RadarEnabled(),
			Sent:  sent,
		})
	}
}
