package whatsapp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/bus"
)

type sentMessage struct {
	chatID string
	text   string
}

type fakeSession struct {
	mu          sync.Mutex
	paired      bool
	connected   bool
	connectErr  error
	groups      []Group
	groupsErr   error
	groupCalls  int
	sendErr     error
	sent        []sentMessage
	disconnects int
	handler     func(evt interface{})
	qr          chan whatsmeow.QRChannelItem
	qrCtx       context.Context
}

func (s *fakeSession) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.disconnects++
}

func (s *fakeSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSession) Paired() bool {
	return s.paired
}

func (s *fakeSession) QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrCtx = ctx
	return s.qr, nil
}

func (s *fakeSession) PairingContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qrCtx
}

func (s *fakeSession) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

func (s *fakeSession) JoinedGroups(context.Context) ([]Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupCalls++
	if s.groupsErr != nil {
		return nil, s.groupsErr
	}
	out := make([]Group, len(s.groups))
	copy(out, s.groups)
	return out, nil
}

func (s *fakeSession) SendText(_ context.Context, chatID string, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text})
	return "MSGID", nil
}

func (s *fakeSession) OnEvent(handler func(evt interface{})) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *fakeSession) emit(evt interface{}) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h(evt)
}

func (s *fakeSession) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *fakeSession) setConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = v
}

// fakeDialer hands out a new session per dial, built from the template.
type fakeDialer struct {
	mu       sync.Mutex
	template func() *fakeSession
	sessions []*fakeSession
	resets   []bool
	err      error
	gate     chan struct{}
	entered  chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, reset bool) (Session, error) {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.gate != nil {
		<-d.gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets = append(d.resets, reset)
	if d.err != nil {
		return nil, d.err
	}
	s := d.template()
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) Last() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

func (d *fakeDialer) Resets() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]bool, len(d.resets))
	copy(out, d.resets)
	return out
}

type countingPersister struct {
	mu sync.Mutex
	n  int
}

func (p *countingPersister) Request() {
	p.mu.Lock()
	p.n++
	p.mu.Unlock()
}

func (p *countingPersister) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

type fakeVersions struct {
	mu     sync.Mutex
	forced []bool
}

func (v *fakeVersions) Refresh(_ context.Context, force bool) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.forced = append(v.forced, force)
	return true, nil
}

type harness struct {
	bridge        *Bridge
	dialer        *fakeDialer
	clock         *fakeClock
	bus           *bus.Bus
	persist       *countingPersister
	versions      *fakeVersions
	notifications []string
	mu            sync.Mutex
}

var testTexts = ServiceTexts{On: "radar on", Off: "radar off"}

func newHarness(t *testing.T, cfg Config, template func() *fakeSession) *harness {
	t.Helper()
	if cfg.Texts == (ServiceTexts{}) {
		cfg.Texts = testTexts
	}

	h := &harness{
		dialer:   &fakeDialer{template: template},
		clock:    &fakeClock{},
		bus:      bus.New(),
		persist:  &countingPersister{},
		versions: &fakeVersions{},
	}
	h.bus.Notification.Subscribe(func(s string) {
		h.mu.Lock()
		h.notifications = append(h.notifications, s)
		h.mu.Unlock()
	})
	h.bridge = newBridge(cfg, h.bus, managerOptions{
		dialer:    h.dialer,
		bus:       h.bus,
		persist:   h.persist,
		versions:  h.versions,
		afterFunc: h.clock.AfterFunc,
		async:     func(f func()) { f() },
	}, nil)
	t.Cleanup(h.bridge.Stop)
	return h
}

func (h *harness) Notifications() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.notifications))
	copy(out, h.notifications)
	return out
}

// open starts a session and delivers the open event.
func (h *harness) open(t *testing.T) *fakeSession {
	t.Helper()
	h.bridge.Start(false)
	s := h.dialer.Last()
	require.NotNil(t, s)
	s.emit(connectedEvent())
	require.Equal(t, StatusConnected, h.bridge.Manager.Status())
	return s
}

func pairedSession(groups ...Group) func() *fakeSession {
	return func() *fakeSession {
		return &fakeSession{paired: true, groups: groups}
	}
}

var errSend = errors.New("send failed")
