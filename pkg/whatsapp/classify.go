package whatsapp

import (
	"strconv"

	"go.mau.fi/whatsmeow/types/events"
)

// Close codes as reported on the connection. The numeric values follow the
// WhatsApp Web protocol; a few are synthesized for events that carry no code.
const (
	CodeLoggedOut          = 401
	CodeTempBanned         = 402
	CodeMainDeviceGone     = 403
	CodeClientOutdated     = 405
	CodeUnknownLogout      = 406
	CodeTimedOut           = 408
	CodeConnectionRestart  = 409
	CodeConnectionClosed   = 428
	CodeConnectionReplaced = 440
)

type DisconnectCause struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type CloseAction int

const (
	ActionRestart CloseAction = iota
	ActionBenignRestart
	ActionReset
	ActionConflict
	ActionRefreshVersion
)

func (a CloseAction) String() string {
	switch a {
	case ActionBenignRestart:
		return "benign_restart"
	case ActionReset:
		return "reset"
	case ActionConflict:
		return "conflict"
	case ActionRefreshVersion:
		return "refresh_version"
	default:
		return "restart"
	}
}

// Classify maps a close to the recovery the lifecycle manager applies.
func Classify(cause DisconnectCause) CloseAction {
	switch cause.Code {
	case CodeLoggedOut, CodeMainDeviceGone, CodeUnknownLogout:
		return ActionReset
	case CodeConnectionReplaced:
		return ActionConflict
	case CodeClientOutdated:
		return ActionRefreshVersion
	case CodeConnectionRestart, CodeConnectionClosed:
		return ActionBenignRestart
	default:
		return ActionRestart
	}
}

// causeFromEvent builds the close cause straight from the structured
// whatsmeow event. ok is false for events that do not close the connection.
func causeFromEvent(evt interface{}) (DisconnectCause, bool) {
	switch e := evt.(type) {
	case *events.LoggedOut:
		code := int(e.Reason)
		if !e.Reason.IsLoggedOut() {
			code = CodeLoggedOut
		}
		return DisconnectCause{Code: code, Reason: "logged out: " + e.Reason.String()}, true
	case *events.StreamReplaced:
		return DisconnectCause{Code: CodeConnectionReplaced, Reason: "stream replaced by another session"}, true
	case *events.ConnectFailure:
		reason := e.Reason.String()
		if e.Message != "" {
			reason += ": " + e.Message
		}
		return DisconnectCause{Code: int(e.Reason), Reason: reason}, true
	case *events.TemporaryBan:
		return DisconnectCause{Code: CodeTempBanned, Reason: e.String()}, true
	case *events.ClientOutdated:
		return DisconnectCause{Code: CodeClientOutdated, Reason: "client outdated"}, true
	case *events.StreamError:
		code, err := strconv.Atoi(e.Code)
		if err != nil {
			code = 0
		}
		return DisconnectCause{Code: code, Reason: "stream error " + e.Code}, true
	case *events.Disconnected:
		return DisconnectCause{Code: CodeConnectionClosed, Reason: "connection closed"}, true
	}
	return DisconnectCause{}, false
}
