package device

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	qrCode "github.com/skip2/go-qrcode"

	typWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/internal/types"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

// QR returns the current pairing challenge
// @Summary     Pairing QR code
// @Description Current pairing challenge as JSON (base64 PNG) or an HTML page
// @Tags        Session
// @Produce     json
// @Produce     html
// @Param       output query string false "json or html"
// @Success     200
// @Failure     404
// @Router      /qr [get]
func QR(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var reqQR typWhatsApp.RequestQR
		reqQR.Output = strings.ToLower(strings.TrimSpace(c.Query("output")))

		code, err := bridge.Manager.QRCode()
		if err != nil {
			if errors.Is(err, pkgWhatsApp.ErrNoQRCode) {
				return router.ResponseNotFound(c, err.Error())
			}
			return router.ResponseInternalError(c, err.Error())
		}

		png, err := qrCode.Encode(code, qrCode.Medium, 256)
		if err != nil {
			log.Print(c).WithError(err).Error("Failed to render QR code")
			return router.ResponseInternalError(c, err.Error())
		}

		var resQR typWhatsApp.ResponseQR
		resQR.QRCode = code
		resQR.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

		if reqQR.Output == "html" {
			return router.ResponseSuccessWithHTML(c, `
		<html>
			<head>
				<title>WhatsApp Pairing</title>
				<meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
				<meta http-equiv="refresh" content="20" />
			</head>
			<body>
				<img src="`+resQR.Image+`" />
				<p><b>Scan with WhatsApp → Linked devices</b></p>
			</body>
		</html>
		`)
		}

		return router.ResponseSuccessWithData(c, "Success get QR code", resQR)
	}
}

// StartSession
// @Summary     Start the WhatsApp session
// @Description Starts a connection attempt; reset=true discards the stored credentials first
// @Tags        Session
// @Produce     json
// @Param       reset query bool false "Discard credentials and pair again"
// @Success     202
// @Security    AdminSecret
// @Router      /session/start [post]
func StartSession(bridge *pkgWhatsApp.Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var reqStart typWhatsApp.RequestSessionStart
		reqStart.Reset = c.QueryBool("reset", false)

		log.Print(c).WithField("reset", reqStart.Reset).Info("Session start requested")
		go bridge.Start(reqStart.Reset)

		return router.ResponseAcceptedWithData(c, "Session start requested", typWhatsApp.ResponseSessionStart{
			Reset:  reqStart.Reset,
			Status: bridge.Manager.Status(),
		})
	}
}
