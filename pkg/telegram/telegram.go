package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/bus"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

type Config struct {
	AppID       int
	AppHash     string
	BotToken    string
	SessionPath string
	// SourceID is the user, chat or channel whose messages are relayed.
	// Bot API style ids (-100...) are accepted.
	SourceID   int64
	NotifyPeer string
}

func (c Config) Enabled() bool {
	return c.AppID != 0 && c.AppHash != "" && c.BotToken != ""
}

var ErrNotConfigured = errors.New("telegram is not configured")

const notifyQueueSize = 32

// Client relays source messages onto the bus and forwards bus
// notifications to the notify peer.
type Client struct {
	cfg     Config
	bus     *bus.Bus
	persist func()
	client  *telegram.Client
	notify  chan string
	unsub   func()
}

// New builds the adapter. persist is called after a successful login so
// the session file reaches the credential mirror.
func New(cfg Config, b *bus.Bus, persist func()) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	c := &Client{
		cfg:     cfg,
		bus:     b,
		persist: persist,
		notify:  make(chan string, notifyQueueSize),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(_ context.Context, _ tg.Entities, u *tg.UpdateNewMessage) error {
		c.handle(u.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(_ context.Context, _ tg.Entities, u *tg.UpdateNewChannelMessage) error {
		c.handle(u.Message)
		return nil
	})

	c.client = telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: cfg.SessionPath},
		UpdateHandler:  dispatcher,
	})

	if cfg.NotifyPeer != "" {
		c.unsub = b.Notification.Subscribe(c.enqueue)
	}
	return c, nil
}

func (c *Client) handle(msg tg.MessageClass) {
	text, ok := sourceText(msg, c.cfg.SourceID)
	if !ok {
		return
	}
	log.Component("telegram").WithField("text", log.Preview(text, 80)).Debug("Source message received")
	c.bus.TelegramMessage.Publish(text)
}

func (c *Client) enqueue(text string) {
	select {
	case c.notify <- text:
	default:
		log.Component("telegram").WithField("text", log.Preview(text, 80)).Warn("Notification queue full, dropping")
	}
}

// Serve runs the client until ctx is done, reconnecting with backoff.
func (c *Client) Serve(ctx context.Context) {
	if c.unsub != nil {
		defer c.unsub()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 2 * time.Minute
	b.MaxElapsedTime = 0

	_ = backoff.RetryNotify(func() error {
		err := c.run(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			b.Reset()
			err = errors.New("telegram client stopped")
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Component("telegram").WithError(err).WithField("retry_in", next.String()).Warn("Telegram client failed")
	})
	log.Component("telegram").Info("Telegram client stopped")
}

func (c *Client) run(ctx context.Context) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.authorize(ctx); err != nil {
			return err
		}

		sender := message.NewSender(c.client.API())
		for {
			select {
			case <-ctx.Done():
				return nil
			case text := <-c.notify:
				if _, err := sender.Resolve(c.cfg.NotifyPeer).Text(ctx, text); err != nil {
					log.Component("telegram").WithError(err).WithField("peer", c.cfg.NotifyPeer).Error("Failed to send notification")
				}
			}
		}
	})
}

func (c *Client) authorize(ctx context.Context) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if !status.Authorized {
		if _, err := c.client.Auth().Bot(ctx, c.cfg.BotToken); err != nil {
			return fmt.Errorf("bot login: %w", err)
		}
		if c.persist != nil {
			c.persist()
		}
	}
	log.Component("telegram").WithField("source_id", c.cfg.SourceID).Info("Telegram client authorized")
	return nil
}

// normalizePeerID maps Bot API style ids onto raw MTProto ids.
func normalizePeerID(id int64) int64 {
	const channelOffset = 1000000000000
	switch {
	case id <= -channelOffset:
		return -(id + channelOffset)
	case id < 0:
		return -id
	}
	return id
}

// sourceText returns the text of an inbound message sent by the source,
// either as its author or as the chat it was posted in.
func sourceText(msg tg.MessageClass, sourceID int64) (string, bool) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out || sourceID == 0 {
		return "", false
	}
	text := strings.TrimSpace(m.Message)
	if text == "" {
		return "", false
	}

	want := normalizePeerID(sourceID)
	if from, ok := m.GetFromID(); ok {
		if u, ok := from.(*tg.PeerUser); ok && u.UserID == want {
			return text, true
		}
	}
	switch p := m.PeerID.(type) {
	case *tg.PeerChannel:
		return text, p.ChannelID == want
	case *tg.PeerChat:
		return text, p.ChatID == want
	case *tg.PeerUser:
		return text, p.UserID == want
	}
	return "", false
}
