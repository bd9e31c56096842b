package bus

import (
	"fmt"
	"sync"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

const (
	TopicNotification    = "wa.notification"
	TopicTelegramMessage = "tg.message"
)

// Bus carries the two cross-component events of the bridge.
type Bus struct {
	// Notification carries operator-facing status text from the WhatsApp side.
	Notification *Topic[string]
	// TelegramMessage carries source text observed on Telegram.
	TelegramMessage *Topic[string]
}

func New() *Bus {
	return &Bus{
		Notification:    NewTopic[string](TopicNotification),
		TelegramMessage: NewTopic[string](TopicTelegramMessage),
	}
}

type subscription[T any] struct {
	fn func(T)
}

// Topic is a typed publish/subscribe channel. Publish calls every
// subscriber synchronously in registration order.
type Topic[T any] struct {
	name string

	mu   sync.RWMutex
	subs []*subscription[T]
}

func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

func (t *Topic[T]) Name() string {
	return t.name
}

// Subscribe registers fn and returns a function removing it again.
// Calling the returned function more than once is harmless.
func (t *Topic[T]) Subscribe(fn func(T)) func() {
	sub := &subscription[T]{fn: fn}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s == sub {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers v and returns how many subscribers were invoked.
func (t *Topic[T]) Publish(v T) int {
	t.mu.RLock()
	subs := make([]*subscription[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()

	for _, sub := range subs {
		t.deliver(sub, v)
	}
	return len(subs)
}

func (t *Topic[T]) deliver(sub *subscription[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Component("bus").WithField("topic", t.name).Error(fmt.Sprintf("subscriber panic recovered: %v", rec))
		}
	}()
	sub.fn(v)
}

func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
