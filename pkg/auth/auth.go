package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/env"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
)

const AdminSecretHeader = "X-Admin-Secret"

// AdminSecretKey guards the write routes of the control surface.
var AdminSecretKey string

func init() {
	AdminSecretKey, _ = env.GetEnvString("ADMIN_SECRET_KEY")
}

// AdminAuth checks the X-Admin-Secret header against secret. An empty
// secret leaves the routes open.
func AdminAuth(secret string) fiber.Handler {
	if secret == "" {
		log.Print(nil).Warn("ADMIN_SECRET_KEY is not set, control routes are unauthenticated")
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return func(c *fiber.Ctx) error {
		given := c.Get(AdminSecretHeader)
		if given == "" {
			return router.ResponseUnauthorized(c, "Missing "+AdminSecretHeader+" header")
		}
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			return router.ResponseUnauthorized(c, "Invalid admin secret")
		}
		return c.Next()
	}
}
