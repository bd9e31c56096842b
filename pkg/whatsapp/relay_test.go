package whatsapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestForwardFailsWhenNotConnected(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{ID: "123"}}, pairedSession())

	ok := h.bridge.Relay.Forward(context.Background(), "hello")

	assert.False(t, ok)
	assert.Empty(t, h.bridge.Relay.Forwarded())
}

func TestForwardToResolvedGroup(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{Name: "Team"}},
		pairedSession(Group{ID: "1@g.us", Name: "Family"}, Group{ID: "2@g.us", Name: "My Team Chat"}))
	s := h.open(t)

	require.True(t, h.bridge.Relay.Forward(context.Background(), "contact at 12:00"))

	assert.Equal(t, []sentMessage{{chatID: "2@g.us", text: "contact at 12:00"}}, s.Sent())
	forwarded := h.bridge.Relay.Forwarded()
	require.Len(t, forwarded, 1)
	assert.Equal(t, "contact at 12:00", forwarded[0].Text)
	assert.Equal(t, "2@g.us", forwarded[0].Counterparty)
	assert.False(t, forwarded[0].Timestamp.IsZero())
}

func TestForwardFallsBackToConfiguredID(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{ID: "123"}}, pairedSession())
	s := h.open(t)

	_, _, resolved := h.bridge.Groups.Cached()
	require.False(t, resolved)

	require.True(t, h.bridge.Relay.Forward(context.Background(), "hello"))
	assert.Equal(t, "123@g.us", s.Sent()[0].chatID)
}

func TestForwardWithoutDestination(t *testing.T) {
	h := newHarness(t, Config{}, pairedSession())
	s := h.open(t)

	assert.False(t, h.bridge.Relay.Forward(context.Background(), "hello"))
	assert.Empty(t, s.Sent())
}

func TestForwardSendErrorIsNotRecorded(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{ID: "123"}}, func() *fakeSession {
		return &fakeSession{paired: true, sendErr: errSend}
	})
	h.open(t)

	assert.False(t, h.bridge.Relay.Forward(context.Background(), "hello"))
	assert.Empty(t, h.bridge.Relay.Forwarded())
}

func TestForwardRejectsEmptyText(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{ID: "123"}}, pairedSession())
	s := h.open(t)

	assert.False(t, h.bridge.Relay.Forward(context.Background(), "  \n "))
	assert.Empty(t, s.Sent())
}

func TestInboundMessagesAreRecorded(t *testing.T) {
	h := newHarness(t, Config{}, pairedSession())
	s := h.open(t)

	sender := types.NewJID("79990001122", types.DefaultUserServer)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.emit(&events.Message{
		Info:    types.MessageInfo{MessageSource: types.MessageSource{Sender: sender}, Timestamp: at},
		Message: &waE2E.Message{Conversation: proto.String("ack")},
	})
	s.emit(&events.Message{
		Info:    types.MessageInfo{MessageSource: types.MessageSource{Sender: sender}},
		Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}},
	})

	received := h.bridge.Relay.Received()
	require.Len(t, received, 1)
	assert.Equal(t, Activity{Text: "ack", Counterparty: sender.String(), Timestamp: at}, received[0])
}

func TestTelegramMessagesRespectRadarGate(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{ID: "123"}}, pairedSession())
	s := h.open(t)

	h.bus.TelegramMessage.Publish("while off")
	assert.Empty(t, s.Sent())

	h.bridge.Notifier.SetRadarGate(context.Background(), true)
	h.bus.TelegramMessage.Publish("while on")

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, testTexts.On, sent[0].text)
	assert.Equal(t, "while on", sent[1].text)
}

func TestConcurrentForward(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{ID: "123"}}, pairedSession())
	s := h.open(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.bridge.Relay.Forward(context.Background(), "burst")
		}()
	}
	wg.Wait()

	assert.Len(t, s.Sent(), 20)
	assert.Len(t, h.bridge.Relay.Forwarded(), 20)
}

func TestKeyChangesRequestPersist(t *testing.T) {
	h := newHarness(t, Config{Group: GroupConfig{ID: "123"}}, pairedSession())
	s := h.open(t)
	base := h.persist.Count()

	require.True(t, h.bridge.Relay.Forward(context.Background(), "contact"))
	assert.Equal(t, base+1, h.persist.Count(), "a send advances the session keys")

	s.sendErr = errSend
	assert.False(t, h.bridge.Relay.Forward(context.Background(), "lost"))
	assert.Equal(t, base+1, h.persist.Count())

	s.emit(&events.Message{Message: &waE2E.Message{Conversation: proto.String("ack")}})
	s.emit(&events.IdentityChange{})
	assert.Equal(t, base+3, h.persist.Count())
}
