package credstore

import (
	"context"
	"time"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

// Mirror keeps one credential directory in sync with a Store. Saves are
// debounced; Hydrate runs once at startup, before the session opens.
type Mirror struct {
	store     Store
	dir       string
	debouncer *Debouncer
}

func NewMirror(store Store, dir string, delay time.Duration) *Mirror {
	m := &Mirror{store: store, dir: dir}
	m.debouncer = NewDebouncer(delay, m.save)
	return m
}

func (m *Mirror) save() {
	m.store.Save(context.Background(), m.dir)
}

// Request schedules a debounced save.
func (m *Mirror) Request() {
	m.debouncer.Request()
}

// Hydrate restores the directory from the store.
func (m *Mirror) Hydrate(ctx context.Context) bool {
	restored := m.store.Load(ctx, m.dir)
	if !restored {
		log.Component("credstore").WithField("dir", m.dir).Info("No mirrored credentials, starting from the local directory")
	}
	return restored
}

// Flush writes any pending save now.
func (m *Mirror) Flush() bool {
	return m.debouncer.Flush()
}

// SaveNow uploads the directory immediately, bypassing the debouncer.
func (m *Mirror) SaveNow(ctx context.Context) {
	m.store.Save(ctx, m.dir)
}

// Close drops any pending debounce, uploads the directory once more and
// closes the store. Callers close the device database first so the files
// on disk are final.
func (m *Mirror) Close(ctx context.Context) error {
	m.debouncer.Stop()
	m.store.Save(ctx, m.dir)
	return m.store.Close(ctx)
}
