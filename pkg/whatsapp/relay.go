package whatsapp

import (
	"context"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/time/rate"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

const (
	previewLength = 80
	sendTimeout   = 30 * time.Second
)

// sendToGroup delivers text to the destination when the connection is open
// and a destination is known. It returns the chat id it sent to.
func sendToGroup(ctx context.Context, conn liveConn, groups *GroupResolver, text string) (string, error) {
	session, ok := conn.Live()
	if !ok {
		return "", ErrNotConnected
	}
	target := groups.Target()
	if target == "" {
		return "", ErrGroupUnknown
	}
	if _, err := session.SendText(ctx, target, text); err != nil {
		return target, err
	}
	return target, nil
}

// Relay forwards text into the destination group and records what was
// sent and received.
type Relay struct {
	conn      liveConn
	groups    *GroupResolver
	limiter   *rate.Limiter
	forwarded *ActivityCache
	received  *ActivityCache
	now       func() time.Time
}

// NewRelay paces outbound messages at perMinute (0 disables pacing).
func NewRelay(conn liveConn, groups *GroupResolver, perMinute int) *Relay {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &Relay{
		conn:      conn,
		groups:    groups,
		limiter:   limiter,
		forwarded: NewActivityCache(DefaultActivityCapacity),
		received:  NewActivityCache(DefaultActivityCapacity),
		now:       time.Now,
	}
}

// Forward sends text to the destination group. Failures are logged and
// reported as false; nothing is queued.
func (r *Relay) Forward(ctx context.Context, text string) bool {
	entry := log.Component("relay").WithField("text", log.Preview(text, previewLength))

	if strings.TrimSpace(text) == "" {
		entry.Warn("Relay skipped: " + ErrEmptyText.Error())
		return false
	}
	if _, ok := r.conn.Live(); !ok {
		entry.Warn("Relay skipped: " + ErrNotConnected.Error())
		return false
	}
	if r.groups.Target() == "" {
		entry.Warn("Relay skipped: " + ErrGroupUnknown.Error())
		return false
	}

	if err := r.limiter.Wait(ctx); err != nil {
		entry.WithError(err).Warn("Relay cancelled while waiting for the rate limiter")
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	target, err := sendToGroup(sendCtx, r.conn, r.groups, text)
	if err != nil {
		entry.WithError(err).WithField("group", target).Error("Relay failed")
		return false
	}

	r.forwarded.Add(Activity{Text: text, Counterparty: target, Timestamp: r.now()})
	entry.WithField("group", target).Info("Relayed message")
	return true
}

// Observe records inbound plain-text messages.
func (r *Relay) Observe(evt *events.Message) {
	text := messageText(evt.Message)
	if text == "" {
		return
	}

	counterparty := evt.Info.Sender.String()
	if evt.Info.Sender.IsEmpty() {
		counterparty = ""
	}
	timestamp := evt.Info.Timestamp
	if timestamp.IsZero() {
		timestamp = r.now()
	}
	r.received.Add(Activity{Text: text, Counterparty: counterparty, Timestamp: timestamp})
}

// HandleTelegram relays source text while gate reports the radar on.
func (r *Relay) HandleTelegram(ctx context.Context, text string, gate func() bool) bool {
	if !gate() {
		log.Component("relay").WithField("text", log.Preview(text, previewLength)).Debug("Radar off, source message dropped")
		return false
	}
	return r.Forward(ctx, text)
}

func (r *Relay) Forwarded() []Activity {
	return r.forwarded.Recent()
}

func (r *Relay) Received() []Activity {
	return r.received.Recent()
}
