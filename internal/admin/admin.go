package admin

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/internal/types"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

const requestTimeout = 30 * time.Second

func setRadar(bridge *pkgWhatsApp.Bridge, enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()

		announced := bridge.Notifier.SetRadarGate(ctx, enabled)
		log.Print(c).WithField("radar", enabled).WithField("announced", announced).Info("Radar gate set")

		message := "Radar disabled"
		if enabled {
			message = "Radar enabled"
		}
		return router.ResponseSuccessWithData(c, message, typWhatsApp.ResponseRadar{
			Radar:     enabled,
			Announced: announced,
		})
	}
}

// RadarOn
// @Summary     Enable the radar
// @Description Starts relaying Telegram messages and announces it in the group
// @Tags        Radar
// @Produce     json
// @Success     200
// @Security    AdminSecret
// @Router      /radar/on [post]
func RadarOn(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return setRadar(bridge, true)
}

// RadarOff
// @Summary     Disable the radar
// @Tags        Radar
// @Produce     json
// @Success     200
// @Security    AdminSecret
// @Router      /radar/off [post]
func RadarOff(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return setRadar(bridge, false)
}

// GetWhatsAppWebVersion
// @Summary     WhatsApp Web version in use
// @Tags        Admin
// @Produce     json
// @Success     200
// @Security    AdminSecret
// @Router      /admin/whatsapp/version [get]
func GetWhatsAppWebVersion(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if bridge.Versions == nil {
			return router.ResponseNotFound(c, "WhatsApp Web version refresh is disabled")
		}
		return router.ResponseSuccessWithData(c, "", bridge.Versions.Status())
	}
}

// RefreshWhatsAppWebVersion
// @Summary     Fetch the latest WhatsApp Web version
// @Tags        Admin
// @Produce     json
// @Param       force query bool false "Ignore the minimum refresh interval" default(true)
// @Success     200
// @Failure     502
// @Security    AdminSecret
// @Router      /admin/whatsapp/version/refresh [post]
func RefreshWhatsAppWebVersion(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if bridge.Versions == nil {
			return router.ResponseNotFound(c, "WhatsApp Web version refresh is disabled")
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()

		refreshed, err := bridge.Versions.Refresh(ctx, c.QueryBool("force", true))
		if err != nil {
			return router.ResponseBadGateway(c, err.Error())
		}
		if !refreshed {
			return router.ResponseSuccessWithData(c, "WhatsApp Web version refresh throttled", bridge.Versions.Status())
		}
		return router.ResponseSuccessWithData(c, "WhatsApp Web version refreshed", bridge.Versions.Status())
	}
}
