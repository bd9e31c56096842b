package internal

import (
	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/auth"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"

	ctlAdmin "github.com/makc56com-code/tg-wa-bridge-sub000/internal/admin"
	ctlDevice "github.com/makc56com-code/tg-wa-bridge-sub000/internal/device"
	ctlGroups "github.com/makc56com-code/tg-wa-bridge-sub000/internal/groups"
	ctlHistory "github.com/makc56com-code/tg-wa-bridge-sub000/internal/history"
	ctlIndex "github.com/makc56com-code/tg-wa-bridge-sub000/internal/index"
	ctlMessage "github.com/makc56com-code/tg-wa-bridge-sub000/internal/message"
	ctlStatus "github.com/makc56com-code/tg-wa-bridge-sub000/internal/status"
)

type RouteOptions struct {
	AdminSecret     string
	TelegramEnabled bool
}

func Routes(app *fiber.App, bridge *pkgWhatsApp.Bridge, opts RouteOptions) {
	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	docs := app.Group(router.BaseURL+"/docs", router.HttpCacheInMemory(router.CacheTTLSeconds))
	docs.Get("/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	docs.Get("/*", swagger.New(swagger.Config{
		URL: router.BaseURL + "/docs/swagger.json",
	}))

	// Read routes
	// ---------------------------------------------
	app.Get(router.BaseURL+"/status", ctlStatus.Status(bridge, opts.TelegramEnabled))
	app.Get(router.BaseURL+"/qr", ctlDevice.QR(bridge))
	app.Get(router.BaseURL+"/activity/forwarded", ctlHistory.Forwarded(bridge))
	app.Get(router.BaseURL+"/activity/received", ctlHistory.Received(bridge))

	// Write routes (X-Admin-Secret)
	// ---------------------------------------------
	adminMiddleware := auth.AdminAuth(opts.AdminSecret)

	app.Post(router.BaseURL+"/session/start", adminMiddleware, ctlDevice.StartSession(bridge))
	app.Post(router.BaseURL+"/radar/on", adminMiddleware, ctlAdmin.RadarOn(bridge))
	app.Post(router.BaseURL+"/radar/off", adminMiddleware, ctlAdmin.RadarOff(bridge))
	app.Post(router.BaseURL+"/relay", adminMiddleware, ctlMessage.Relay(bridge))
	app.Post(router.BaseURL+"/group/announce", adminMiddleware, ctlGroups.Announce(bridge))

	app.Get(router.BaseURL+"/admin/whatsapp/version", adminMiddleware, ctlAdmin.GetWhatsAppWebVersion(bridge))
	app.Post(router.BaseURL+"/admin/whatsapp/version/refresh", adminMiddleware, ctlAdmin.RefreshWhatsAppWebVersion(bridge))
}
