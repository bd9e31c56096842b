package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/bus"
)

func TestSourceText(t *testing.T) {
	fromUser := &tg.Message{Message: "contact 12:05", PeerID: &tg.PeerChat{ChatID: 7}}
	fromUser.SetFromID(&tg.PeerUser{UserID: 42})

	tests := []struct {
		name     string
		msg      tg.MessageClass
		sourceID int64
		want     string
		ok       bool
	}{
		{"author matches", fromUser, 42, "contact 12:05", true},
		{"chat matches", fromUser, 7, "contact 12:05", true},
		{"channel post", &tg.Message{Message: "alert", PeerID: &tg.PeerChannel{ChannelID: 1234567}}, 1234567, "alert", true},
		{"bot api channel id", &tg.Message{Message: "alert", PeerID: &tg.PeerChannel{ChannelID: 1234567}}, -1001234567, "alert", true},
		{"other channel", &tg.Message{Message: "alert", PeerID: &tg.PeerChannel{ChannelID: 99}}, 1234567, "", false},
		{"outgoing", &tg.Message{Out: true, Message: "x", PeerID: &tg.PeerUser{UserID: 42}}, 42, "", false},
		{"blank text", &tg.Message{Message: "   ", PeerID: &tg.PeerUser{UserID: 42}}, 42, "", false},
		{"service message", &tg.MessageService{PeerID: &tg.PeerUser{UserID: 42}}, 42, "", false},
		{"unset source", &tg.Message{Message: "x", PeerID: &tg.PeerUser{UserID: 42}}, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sourceText(tt.msg, tt.sourceID)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizePeerID(t *testing.T) {
	assert.Equal(t, int64(1234567), normalizePeerID(-1001234567))
	assert.Equal(t, int64(555), normalizePeerID(-555))
	assert.Equal(t, int64(42), normalizePeerID(42))
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := New(Config{AppID: 1, AppHash: "hash"}, bus.New(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSourceMessagesArePublished(t *testing.T) {
	b := bus.New()
	c, err := New(Config{AppID: 1, AppHash: "hash", BotToken: "1:token", SessionPath: t.TempDir() + "/s.json", SourceID: 42, NotifyPeer: "ops"}, b, nil)
	require.NoError(t, err)

	var got []string
	b.TelegramMessage.Subscribe(func(s string) { got = append(got, s) })

	c.handle(&tg.Message{Message: "radar 1", PeerID: &tg.PeerUser{UserID: 42}})
	c.handle(&tg.Message{Message: "noise", PeerID: &tg.PeerUser{UserID: 43}})

	assert.Equal(t, []string{"radar 1"}, got)
}

func TestNotificationsQueueWithoutBlocking(t *testing.T) {
	b := bus.New()
	c, err := New(Config{AppID: 1, AppHash: "hash", BotToken: "1:token", SessionPath: t.TempDir() + "/s.json", NotifyPeer: "ops"}, b, nil)
	require.NoError(t, err)

	for i := 0; i < notifyQueueSize+5; i++ {
		b.Notification.Publish("note")
	}

	assert.Len(t, c.notify, notifyQueueSize)
}
