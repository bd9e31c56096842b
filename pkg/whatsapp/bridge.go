package whatsapp

import (
	"context"
	"errors"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/bus"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

type Config struct {
	Group              GroupConfig
	Texts              ServiceTexts
	RadarEnabled       bool
	RelayRatePerMinute int
	QRTerminal         bool
}

// Bridge wires the lifecycle manager, group resolver, relay and notifier
// around one connection.
type Bridge struct {
	Manager  *Manager
	Groups   *GroupResolver
	Relay    *Relay
	Notifier *Notifier
	Versions *VersionRefresher

	unsubscribe func()
}

type BridgeSnapshot struct {
	LifecycleSnapshot
	ServiceSnapshot
	Group          *Group    `json:"group,omitempty"`
	GroupMatch     MatchKind `json:"group_match,omitempty"`
	ConfiguredID   string    `json:"configured_group_id,omitempty"`
	ConfiguredName string    `json:"configured_group_name,omitempty"`
	ForwardedCount int       `json:"forwarded_count"`
	ReceivedCount  int       `json:"received_count"`
	WAWebVersion   string    `json:"wa_web_version,omitempty"`
}

func NewBridge(cfg Config, dialer Dialer, b *bus.Bus, persist Persister, versions *VersionRefresher) *Bridge {
	opts := managerOptions{
		dialer:     dialer,
		bus:        b,
		persist:    persist,
		qrTerminal: cfg.QRTerminal,
	}
	if versions != nil {
		opts.versions = versions
	}
	return newBridge(cfg, b, opts, versions)
}

func newBridge(cfg Config, b *bus.Bus, opts managerOptions, versions *VersionRefresher) *Bridge {
	manager := newManager(opts)
	groups := NewGroupResolver(cfg.Group, manager)
	relay := NewRelay(manager, groups, cfg.RelayRatePerMinute)
	notifier := NewNotifier(manager, groups, manager, cfg.Texts, cfg.RadarEnabled)
	notifier.async = manager.async

	br := &Bridge{
		Manager:  manager,
		Groups:   groups,
		Relay:    relay,
		Notifier: notifier,
		Versions: versions,
	}
	manager.onOpen = br.afterOpen
	manager.onMessage = func(evt *events.Message) { relay.Observe(evt) }

	br.unsubscribe = b.TelegramMessage.Subscribe(func(text string) {
		ctx, cancel := context.WithTimeout(manager.ctx, time.Minute)
		defer cancel()
		relay.HandleTelegram(ctx, text, notifier.RadarEnabled)
	})
	return br
}

// afterOpen runs group resolution, pending drain and welcome, in that order.
func (b *Bridge) afterOpen(ctx context.Context) {
	if _, err := b.Groups.Resolve(ctx); err != nil && !errors.Is(err, ErrGroupNotFound) {
		log.Component("whatsapp").WithError(err).Warn("Group resolution after open failed")
	}
	b.Notifier.DrainPending(ctx)
	b.Notifier.Welcome(ctx)
}

func (b *Bridge) Start(reset bool) {
	b.Manager.Start(reset)
}

func (b *Bridge) Stop() {
	b.unsubscribe()
	b.Manager.Stop()
}

func (b *Bridge) Snapshot() BridgeSnapshot {
	cfg := b.Groups.Config()
	snap := BridgeSnapshot{
		LifecycleSnapshot: b.Manager.Snapshot(),
		ServiceSnapshot:   b.Notifier.Snapshot(),
		ConfiguredID:      cfg.ID,
		ConfiguredName:    cfg.Name,
		ForwardedCount:    b.Relay.forwarded.Len(),
		ReceivedCount:     b.Relay.received.Len(),
	}
	if group, kind, ok := b.Groups.Cached(); ok {
		snap.Group = &group
		snap.GroupMatch = kind
	}
	if b.Versions != nil {
		snap.WAWebVersion = b.Versions.Status().CurrentVersion
	}
	return snap
}
