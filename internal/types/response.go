package types

import (
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

type ResponseStatus struct {
	pkgWhatsApp.BridgeSnapshot
	Telegram bool `json:"telegram"`
}

type ResponseQR struct {
	QRCode string `json:"qr_code"`
	Image  string `json:"image"`
}

type ResponseActivity struct {
	Count int                    `json:"count"`
	Items []pkgWhatsApp.Activity `json:"items"`
}

type ResponseSessionStart struct {
	Reset  bool                         `json:"reset"`
	Status pkgWhatsApp.ConnectionStatus `json:"status"`
}

type ResponseRadar struct {
	Radar     bool `json:"radar"`
	Announced bool `json:"announced"`
}

type ResponseRelay struct {
	Forwarded bool   `json:"forwarded"`
	Group     string `json:"group,omitempty"`
}

type ResponseAnnounce struct {
	Group pkgWhatsApp.Group `json:"group"`
	Radar bool              `json:"radar"`
	Sent  bool              `json:"sent"`
}
