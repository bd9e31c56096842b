package whatsapp

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// Session is the live connection handle. Only one is live at a time; the
// lifecycle manager replaces it on every (re)start.
type Session interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	// Paired reports whether the device already holds an identity.
	Paired() bool
	// QRChannel must be requested before Connect on an unpaired device.
	QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	JoinedGroups(ctx context.Context) ([]Group, error)
	SendText(ctx context.Context, chatID string, text string) (string, error)
	OnEvent(handler func(evt interface{}))
}

// Dialer builds a fresh session. reset discards the stored identity first.
type Dialer interface {
	Dial(ctx context.Context, reset bool) (Session, error)
}

type clientSession struct {
	client *whatsmeow.Client
}

func (s *clientSession) Connect() error {
	return s.client.Connect()
}

func (s *clientSession) Disconnect() {
	s.client.Disconnect()
}

func (s *clientSession) IsConnected() bool {
	return s.client.IsConnected()
}

func (s *clientSession) Paired() bool {
	return s.client.Store.ID != nil
}

func (s *clientSession) QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return s.client.GetQRChannel(ctx)
}

func (s *clientSession) JoinedGroups(ctx context.Context) ([]Group, error) {
	groups, err := s.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Group, 0, len(groups))
	for _, group := range groups {
		if group == nil {
			continue
		}
		out = append(out, Group{ID: group.JID.String(), Name: group.Name})
	}
	return out, nil
}

func (s *clientSession) SendText(ctx context.Context, chatID string, text string) (string, error) {
	remoteJID, err := types.ParseJID(chatID)
	if err != nil {
		return "", fmt.Errorf("parse chat id %q: %w", chatID, err)
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: s.client.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(text),
	}
	if _, err = s.client.SendMessage(ctx, remoteJID, msgContent, msgExtra); err != nil {
		return "", err
	}
	return string(msgExtra.ID), nil
}

func (s *clientSession) OnEvent(handler func(evt interface{})) {
	s.client.AddEventHandler(handler)
}

// messageText extracts plain text; anything else (media, reactions,
// protocol messages) yields "".
func messageText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}
