package whatsapp

import (
	"context"
	"sync"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

type ServiceTexts struct {
	On  string
	Off string
}

func (t ServiceTexts) For(state ServiceState) string {
	if state == ServiceOn {
		return t.On
	}
	return t.Off
}

type starter interface {
	Start(reset bool)
}

type ServiceSnapshot struct {
	Radar    bool         `json:"radar"`
	LastSent ServiceState `json:"last_sent,omitempty"`
	Pending  ServiceState `json:"pending,omitempty"`
}

// Notifier announces the radar state into the destination group. The same
// state is never announced twice in a row; a state that could not be sent
// waits in a single pending slot until the next open.
type Notifier struct {
	conn    liveConn
	groups  *GroupResolver
	starter starter
	texts   ServiceTexts
	async   func(func())

	// sendMu serializes announce attempts so the dedup check and the
	// send are atomic with respect to each other.
	sendMu sync.Mutex

	mu       sync.Mutex
	radar    bool
	lastSent ServiceState
	pending  ServiceState
}

func NewNotifier(conn liveConn, groups *GroupResolver, st starter, texts ServiceTexts, radar bool) *Notifier {
	return &Notifier{
		conn:    conn,
		groups:  groups,
		starter: st,
		texts:   texts,
		radar:   radar,
		async:   func(f func()) { go f() },
	}
}

// Announce sends state unless it was the last state sent. It reports
// whether a message went out.
func (n *Notifier) Announce(ctx context.Context, state ServiceState) bool {
	if !state.Valid() {
		return false
	}

	n.sendMu.Lock()
	defer n.sendMu.Unlock()

	n.mu.Lock()
	if n.lastSent == state {
		n.mu.Unlock()
		log.Component("notifier").WithField("state", string(state)).Debug("Service state already announced")
		return false
	}
	n.mu.Unlock()

	return n.send(ctx, state)
}

// send must be called with sendMu held.
func (n *Notifier) send(ctx context.Context, state ServiceState) bool {
	entry := log.Component("notifier").WithField("state", string(state))

	target, err := sendToGroup(ctx, n.conn, n.groups, n.texts.For(state))
	if err != nil {
		n.mu.Lock()
		n.pending = state
		n.mu.Unlock()
		entry.WithError(err).Warn("Service announcement queued")
		return false
	}

	n.mu.Lock()
	n.lastSent = state
	n.pending = ServiceUnset
	n.mu.Unlock()
	entry.WithField("group", target).Info("Service state announced")
	return true
}

// DrainPending sends the queued state, if any. Runs once per open, after
// group resolution.
func (n *Notifier) DrainPending(ctx context.Context) bool {
	n.mu.Lock()
	state := n.pending
	n.pending = ServiceUnset
	n.mu.Unlock()

	if state == ServiceUnset {
		return false
	}
	return n.Announce(ctx, state)
}

// Welcome announces the radar on right after an open when the gate is on.
func (n *Notifier) Welcome(ctx context.Context) bool {
	if !n.RadarEnabled() {
		return false
	}
	return n.Announce(ctx, ServiceOn)
}

// SetRadarGate switches relaying on or off and announces the change.
// Enabling also starts a connection if none is open.
func (n *Notifier) SetRadarGate(ctx context.Context, enabled bool) bool {
	n.mu.Lock()
	n.radar = enabled
	n.mu.Unlock()

	log.Component("notifier").WithField("enabled", enabled).Info("Radar gate changed")

	if enabled {
		n.async(func() { n.starter.Start(false) })
		return n.Announce(ctx, ServiceOn)
	}
	return n.Announce(ctx, ServiceOff)
}

// Reannounce resolves the destination again and sends the current gate
// state even if it was already announced.
func (n *Notifier) Reannounce(ctx context.Context) (Group, bool, error) {
	group, err := n.groups.Resolve(ctx)
	if err != nil {
		return Group{}, false, err
	}

	state := ServiceOff
	if n.RadarEnabled() {
		state = ServiceOn
	}

	n.sendMu.Lock()
	defer n.sendMu.Unlock()
	return group, n.send(ctx, state), nil
}

func (n *Notifier) RadarEnabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.radar
}

func (n *Notifier) Snapshot() ServiceSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return ServiceSnapshot{Radar: n.radar, LastSent: n.lastSent, Pending: n.pending}
}
