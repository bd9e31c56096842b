package whatsapp

import "errors"

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusAwaitingQR   ConnectionStatus = "awaiting_qr"
	StatusConnected    ConnectionStatus = "connected"
	StatusConflict     ConnectionStatus = "conflict"
)

// ServiceState is an announced radar state. The zero value means nothing
// has been announced (or queued) yet.
type ServiceState string

const (
	ServiceUnset ServiceState = ""
	ServiceOn    ServiceState = "on"
	ServiceOff   ServiceState = "off"
)

func (s ServiceState) Valid() bool {
	return s == ServiceOn || s == ServiceOff
}

var (
	ErrNotConnected   = errors.New("whatsapp connection is not open")
	ErrGroupUnknown   = errors.New("whatsapp destination group is not resolved")
	ErrGroupNotFound  = errors.New("no joined whatsapp group matches the configured destination")
	ErrEmptyText      = errors.New("message text is empty")
	ErrNoQRCode       = errors.New("no pairing challenge is pending")
	ErrInvalidService = errors.New("service state must be on or off")
)
