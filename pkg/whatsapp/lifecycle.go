package whatsapp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/bus"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

const (
	dialTimeout      = 30 * time.Second
	afterOpenTimeout = 2 * time.Minute
	refreshTimeout   = 30 * time.Second
)

// Persister accepts credential persistence requests. Implementations
// coalesce bursts.
type Persister interface {
	Request()
}

type persistFunc func()

func (f persistFunc) Request() { f() }

// persistingSession requests a credential save after every successful
// send. Encrypting advances the stored session keys.
type persistingSession struct {
	Session
	persist Persister
}

func (s persistingSession) SendText(ctx context.Context, chatID string, text string) (string, error) {
	id, err := s.Session.SendText(ctx, chatID, text)
	if err == nil {
		s.persist.Request()
	}
	return id, err
}

type versionRefresher interface {
	Refresh(ctx context.Context, force bool) (bool, error)
}

type liveConn interface {
	// Live returns the session and whether the connection is open.
	Live() (Session, bool)
}

type LifecycleSnapshot struct {
	Status       ConnectionStatus `json:"status"`
	HasQR        bool             `json:"has_qr"`
	Starting     bool             `json:"starting"`
	RetryCount   int              `json:"retry_count"`
	RetryPending bool             `json:"retry_pending"`
	Conflicts    int              `json:"conflicts"`
	LastClose    *DisconnectCause `json:"last_close,omitempty"`
}

// Manager owns the single WhatsApp connection: it starts sessions, reacts
// to closes and schedules restarts.
type Manager struct {
	dialer   Dialer
	bus      *bus.Bus
	persist  Persister
	versions versionRefresher
	renderQR func(code string)
	retry    *retryScheduler
	async    func(func())

	// onOpen runs once per open, after status became connected.
	onOpen    func(ctx context.Context)
	onMessage func(evt *events.Message)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	status     ConnectionStatus
	session    Session
	generation uint64
	closedGen  uint64
	notifiedQR uint64
	starting   bool
	qrCode     string
	conflicts  int
	lastClose  *DisconnectCause

	// sessionCancel ends the pairing watcher of the live generation.
	sessionCancel context.CancelFunc
}

type managerOptions struct {
	dialer     Dialer
	bus        *bus.Bus
	persist    Persister
	versions   versionRefresher
	qrTerminal bool
	afterFunc  afterFunc
	async      func(func())
}

func newManager(opts managerOptions) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		dialer:   opts.dialer,
		bus:      opts.bus,
		persist:  opts.persist,
		versions: opts.versions,
		async:    opts.async,
		ctx:      ctx,
		cancel:   cancel,
		status:   StatusDisconnected,
	}
	if m.async == nil {
		m.async = func(f func()) { go f() }
	}
	if m.persist == nil {
		m.persist = persistFunc(func() {})
	}
	if opts.qrTerminal {
		m.renderQR = func(code string) {
			qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
		}
	}
	m.retry = newRetryScheduler(opts.afterFunc, m.Start)
	return m
}

func (m *Manager) log() *logrus.Entry {
	return log.Component("whatsapp")
}

// Start opens a new connection, replacing any previous handle. It is a
// no-op while another start is in flight, and while a handle is connecting,
// pairing or connected unless reset is requested.
func (m *Manager) Start(reset bool) {
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	if m.starting {
		m.mu.Unlock()
		m.log().Debug("Start skipped, another start is in flight")
		return
	}
	if !reset && m.status != StatusDisconnected && m.status != StatusConflict {
		m.mu.Unlock()
		m.log().WithField("status", m.status).Debug("Start skipped, a connection is already in progress")
		return
	}
	m.starting = true
	old, oldCancel := m.session, m.sessionCancel
	m.session = nil
	m.sessionCancel = nil
	m.generation++
	gen := m.generation
	m.status = StatusConnecting
	m.qrCode = ""
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
	}()

	m.retry.Cancel()
	if oldCancel != nil {
		oldCancel()
	}
	if old != nil {
		old.Disconnect()
	}

	m.log().WithField("reset", reset).WithField("generation", gen).Info("Starting WhatsApp connection")

	dialCtx, cancel := context.WithTimeout(m.ctx, dialTimeout)
	session, err := m.dialer.Dial(dialCtx, reset)
	cancel()
	if err != nil {
		m.log().WithError(err).Error("Failed to prepare WhatsApp session")
		m.handleClose(gen, DisconnectCause{Reason: err.Error()})
		return
	}
	session.OnEvent(func(evt interface{}) { m.handleEvent(gen, evt) })

	sessionCtx, sessionCancel := context.WithCancel(m.ctx)
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		sessionCancel()
		session.Disconnect()
		return
	}
	m.session = session
	m.sessionCancel = sessionCancel
	m.mu.Unlock()

	if !session.Paired() {
		qrChan, err := session.QRChannel(sessionCtx)
		if err != nil {
			m.log().WithError(err).Error("Failed to open pairing channel")
			m.handleClose(gen, DisconnectCause{Reason: err.Error()})
			return
		}
		go m.watchQR(sessionCtx, gen, qrChan)
	}

	if err := session.Connect(); err != nil {
		m.log().WithError(err).Error("Failed to connect WhatsApp session")
		m.handleClose(gen, DisconnectCause{Reason: err.Error()})
	}
}

// Stop disconnects the live handle and cancels any pending restart. The
// manager cannot be started again afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.generation++
	session := m.session
	m.session = nil
	m.sessionCancel = nil
	m.status = StatusDisconnected
	m.qrCode = ""
	m.mu.Unlock()

	m.retry.Cancel()
	m.cancel()
	if session != nil {
		session.Disconnect()
	}
}

func (m *Manager) handleEvent(gen uint64, evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		m.handleOpen(gen)
		return
	case *events.PairSuccess:
		m.log().WithField("jid", e.ID.String()).Info("WhatsApp device paired")
		m.persist.Request()
		return
	case *events.Message:
		if !m.isCurrent(gen) {
			return
		}
		m.persist.Request()
		if m.onMessage != nil {
			m.onMessage(e)
		}
		return
	case *events.IdentityChange, *events.AppStateSyncComplete, *events.PushNameSetting:
		if m.isCurrent(gen) {
			m.persist.Request()
		}
		return
	case *events.KeepAliveTimeout:
		m.log().WithField("errors", e.ErrorCount).Warn("WhatsApp keepalive timeout")
		return
	}

	if cause, ok := causeFromEvent(evt); ok {
		m.handleClose(gen, cause)
	}
}

func (m *Manager) watchQR(ctx context.Context, gen uint64, qrChan <-chan whatsmeow.QRChannelItem) {
	for {
		var item whatsmeow.QRChannelItem
		select {
		case <-ctx.Done():
			return
		case next, ok := <-qrChan:
			if !ok {
				return
			}
			item = next
		}

		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			m.handleQR(gen, item.Code)
		case whatsmeow.QRChannelSuccess.Event:
			m.log().Info("Pairing challenge accepted")
		case whatsmeow.QRChannelTimeout.Event:
			m.handleClose(gen, DisconnectCause{Code: CodeTimedOut, Reason: "pairing challenge expired"})
		case whatsmeow.QRChannelClientOutdated.Event:
			m.handleClose(gen, DisconnectCause{Code: CodeClientOutdated, Reason: "client outdated for pairing"})
		case whatsmeow.QRChannelEventError:
			m.log().WithError(item.Error).Error("Pairing failed")
			m.handleClose(gen, DisconnectCause{Reason: fmt.Sprintf("pairing failed: %v", item.Error)})
		default:
			m.log().WithField("event", item.Event).Warn("Unexpected pairing event")
		}
	}
}

func (m *Manager) handleQR(gen uint64, code string) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.status = StatusAwaitingQR
	m.qrCode = code
	first := m.notifiedQR != gen
	m.notifiedQR = gen
	m.mu.Unlock()

	m.log().Info("Pairing challenge received, scan it from the WhatsApp app")
	if m.renderQR != nil {
		m.renderQR(code)
	}
	if first {
		m.bus.Notification.Publish("📱 WhatsApp pairing required: scan the QR code from the control panel")
	}
}

func (m *Manager) handleOpen(gen uint64) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.status = StatusConnected
	m.qrCode = ""
	m.closedGen = 0
	m.lastClose = nil
	m.mu.Unlock()

	m.retry.Cancel()
	m.retry.Reset()

	m.log().WithField("generation", gen).Info("WhatsApp connection open")
	m.bus.Notification.Publish("✅ WhatsApp connected")
	m.persist.Request()

	m.async(func() {
		if !m.isCurrent(gen) || m.onOpen == nil {
			return
		}
		ctx, cancel := context.WithTimeout(m.ctx, afterOpenTimeout)
		defer cancel()
		m.onOpen(ctx)
	})
}

func (m *Manager) handleClose(gen uint64, cause DisconnectCause) {
	m.mu.Lock()
	if gen != m.generation || m.closedGen == gen {
		m.mu.Unlock()
		return
	}
	m.closedGen = gen
	m.lastClose = &cause
	m.qrCode = ""
	action := Classify(cause)
	if action == ActionConflict {
		m.status = StatusConflict
		m.conflicts++
	} else {
		m.status = StatusDisconnected
	}
	conflicts := m.conflicts
	session := m.session
	m.mu.Unlock()

	entry := m.log().
		WithField("code", cause.Code).
		WithField("reason", cause.Reason).
		WithField("action", action.String())

	switch action {
	case ActionConflict:
		entry.WithField("conflicts", conflicts).Warn("WhatsApp session replaced by another client")
		if session != nil {
			session.Disconnect()
		}
		m.bus.Notification.Publish(fmt.Sprintf("⚠️ WhatsApp session conflict #%d: another client took over, start the session again to relogin", conflicts))
		return
	case ActionReset:
		entry.Warn("WhatsApp logged out, restarting with fresh credentials")
		m.bus.Notification.Publish("🔑 WhatsApp logged out: credentials reset, a new pairing is required")
	case ActionRefreshVersion:
		entry.Warn("WhatsApp client outdated, refreshing WA Web version")
		if m.versions != nil {
			m.async(func() {
				ctx, cancel := context.WithTimeout(m.ctx, refreshTimeout)
				defer cancel()
				_, _ = m.versions.Refresh(ctx, true)
				m.scheduleRestart(false)
			})
			return
		}
	case ActionBenignRestart:
		entry.Info("WhatsApp connection closed")
	default:
		entry.Warn("WhatsApp connection closed unexpectedly")
	}

	m.scheduleRestart(action == ActionReset)
}

func (m *Manager) scheduleRestart(reset bool) {
	delay, scheduled := m.retry.Schedule(reset)
	entry := m.log().WithField("delay", delay.String()).WithField("reset", reset)
	if !scheduled {
		entry.Debug("Restart already pending")
		return
	}
	entry.WithField("attempt", m.retry.Count()).Info("Restart scheduled")
}

// HealthCheck reconciles status with the socket. It reports whether the
// connection is healthy.
func (m *Manager) HealthCheck() bool {
	m.mu.Lock()
	status, session, gen, starting := m.status, m.session, m.generation, m.starting
	m.mu.Unlock()

	switch {
	case status == StatusConnected && session != nil && !session.IsConnected():
		m.handleClose(gen, DisconnectCause{Code: CodeConnectionClosed, Reason: "health check found the socket closed"})
		return false
	case (status == StatusConnecting || status == StatusAwaitingQR) && !starting && session != nil && !session.IsConnected():
		m.handleClose(gen, DisconnectCause{Code: CodeConnectionClosed, Reason: "health check found the handshake socket closed"})
		return false
	case status == StatusDisconnected && !starting && !m.retry.Pending() && m.ctx.Err() == nil:
		m.log().Warn("WhatsApp disconnected with no restart pending")
		m.scheduleRestart(false)
		return false
	}
	return status == StatusConnected
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

func (m *Manager) Live() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, false
	}
	return persistingSession{Session: m.session, persist: m.persist}, m.status == StatusConnected
}

func (m *Manager) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// QRCode returns the pending pairing challenge.
func (m *Manager) QRCode() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.qrCode == "" {
		return "", ErrNoQRCode
	}
	return m.qrCode, nil
}

func (m *Manager) Snapshot() LifecycleSnapshot {
	m.mu.Lock()
	snap := LifecycleSnapshot{
		Status:    m.status,
		HasQR:     m.qrCode != "",
		Starting:  m.starting,
		Conflicts: m.conflicts,
	}
	if m.lastClose != nil {
		c := *m.lastClose
		snap.LastClose = &c
	}
	m.mu.Unlock()

	snap.RetryCount = m.retry.Count()
	snap.RetryPending = m.retry.Pending()
	return snap
}
