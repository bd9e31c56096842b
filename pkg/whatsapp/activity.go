package whatsapp

import (
	"sync"
	"time"
)

const DefaultActivityCapacity = 200

type Activity struct {
	Text         string    `json:"text"`
	Counterparty string    `json:"counterparty,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ActivityCache is a bounded in-memory log. The oldest entry is evicted
// once capacity is reached.
type ActivityCache struct {
	mu       sync.RWMutex
	items    []Activity
	capacity int
}

func NewActivityCache(capacity int) *ActivityCache {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityCache{
		items:    make([]Activity, 0, capacity),
		capacity: capacity,
	}
}

func (c *ActivityCache) Add(a Activity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == c.capacity {
		copy(c.items, c.items[1:])
		c.items = c.items[:len(c.items)-1]
	}
	c.items = append(c.items, a)
}

// Recent returns a copy of the entries, newest first.
func (c *ActivityCache) Recent() []Activity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Activity, len(c.items))
	for i, a := range c.items {
		out[len(c.items)-1-i] = a
	}
	return out
}

func (c *ActivityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
