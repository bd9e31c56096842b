package credstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Request()
	}
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerFlush(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func() { calls.Add(1) })

	assert.False(t, d.Flush(), "nothing pending")

	d.Request()
	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Flush())
}

func TestDebouncerStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })

	d.Request()
	d.Stop()
	d.Request()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.False(t, d.Pending())
}

func TestCollectFilesSkipsTransientFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsmeow.db"), []byte("db"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsmeow.db-journal"), []byte("j"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsmeow.db-shm"), []byte("s"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "telegram_session.json"), []byte("{}"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	docs, err := collectFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, d := range docs {
		names = append(names, d.Name)
		assert.Equal(t, int64(len(d.Data)), d.Size)
	}
	assert.ElementsMatch(t, []string{"whatsmeow.db", "telegram_session.json"}, names)
}

func TestWriteFilesRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "creds.json"), []byte(`{"me":"1"}`), 0o600))
	docs, err := collectFiles(src)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "auth_info")
	written, kept, err := writeFiles(dst, docs)

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Zero(t, kept)
	data, err := os.ReadFile(filepath.Join(dst, "creds.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"me":"1"}`, string(data))
	info, err := os.Stat(filepath.Join(dst, "creds.json"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(docs[0].UpdatedAt), "restored files keep the mirrored mtime")
}

func TestWriteFilesKeepsNewerLocalCopy(t *testing.T) {
	dir := t.TempDir()
	mirrored := time.Now().Add(-time.Hour).UTC()
	path := filepath.Join(dir, "whatsmeow.db")
	require.NoError(t, os.WriteFile(path, []byte("keys-v2"), 0o600))

	written, kept, err := writeFiles(dir, []fileDoc{
		{Name: "whatsmeow.db", Data: []byte("keys-v1"), UpdatedAt: mirrored},
		{Name: "telegram_session.json", Data: []byte("{}"), UpdatedAt: mirrored},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Equal(t, 1, kept)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keys-v2", string(data))
}

func TestWriteFilesReplacesOlderLocalCopy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whatsmeow.db")
	require.NoError(t, os.WriteFile(path, []byte("keys-v1"), 0o600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	written, kept, err := writeFiles(dir, []fileDoc{{Name: "whatsmeow.db", Data: []byte("keys-v2"), UpdatedAt: time.Now().UTC()}})

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Zero(t, kept)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keys-v2", string(data))
}

func TestWriteFilesRejectsTraversal(t *testing.T) {
	_, _, err := writeFiles(t.TempDir(), []fileDoc{{Name: "../evil", Data: []byte("x")}})
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestDisabledMongoStore(t *testing.T) {
	s, err := NewMongoStore(context.Background(), MongoConfig{})
	require.NoError(t, err)

	assert.False(t, s.Enabled())
	assert.False(t, s.Load(context.Background(), t.TempDir()))
	s.Save(context.Background(), t.TempDir())
	assert.NoError(t, s.Close(context.Background()))
}

type memoryStore struct {
	mu     sync.Mutex
	saves  int
	loaded bool
	closed bool
}

func (m *memoryStore) Load(context.Context, string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

func (m *memoryStore) Save(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
}

func (m *memoryStore) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func TestMirrorDebouncesAndFlushesOnClose(t *testing.T) {
	store := &memoryStore{loaded: true}
	m := NewMirror(store, t.TempDir(), time.Hour)

	assert.True(t, m.Hydrate(context.Background()))
	m.Request()
	m.Request()
	assert.Zero(t, store.Saves())

	require.NoError(t, m.Close(context.Background()))
	assert.Equal(t, 1, store.Saves())
	assert.True(t, store.closed)

	m.Request()
	assert.False(t, m.Flush())
}

// dirStore keeps mirrored files in memory, the way the Mongo collection
// holds them.
type dirStore struct {
	mu   sync.Mutex
	docs map[string]fileDoc
}

func newDirStore() *dirStore {
	return &dirStore{docs: map[string]fileDoc{}}
}

func (s *dirStore) Load(_ context.Context, dir string) bool {
	s.mu.Lock()
	docs := make([]fileDoc, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	s.mu.Unlock()

	written, kept, err := writeFiles(dir, docs)
	return err == nil && written+kept > 0
}

func (s *dirStore) Save(_ context.Context, dir string) {
	docs, err := collectFiles(dir)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.docs[doc.Name] = doc
	}
}

func (s *dirStore) Close(context.Context) error { return nil }

func (s *dirStore) Snapshot() *dirStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newDirStore()
	for name, doc := range s.docs {
		out.docs[name] = doc
	}
	return out
}

func writeKeys(t *testing.T, path, data string, at time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestMirrorCloseUploadsFinalState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whatsmeow.db")
	store := newDirStore()
	m := NewMirror(store, dir, time.Hour)

	start := time.Now().Add(-time.Hour)
	writeKeys(t, path, "keys-v1", start)
	m.SaveNow(context.Background())
	writeKeys(t, path, "keys-v2", start.Add(time.Minute))

	require.NoError(t, m.Close(context.Background()))

	fresh := t.TempDir()
	assert.True(t, NewMirror(store, fresh, time.Hour).Hydrate(context.Background()))
	data, err := os.ReadFile(filepath.Join(fresh, "whatsmeow.db"))
	require.NoError(t, err)
	assert.Equal(t, "keys-v2", string(data))
}

func TestHydrateKeepsNewerLocalCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whatsmeow.db")
	store := newDirStore()
	m := NewMirror(store, dir, time.Hour)

	start := time.Now().Add(-time.Hour)
	writeKeys(t, path, "keys-v1", start)
	m.SaveNow(context.Background())
	stale := store.Snapshot()
	writeKeys(t, path, "keys-v2", start.Add(time.Minute))

	assert.True(t, NewMirror(stale, dir, time.Hour).Hydrate(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keys-v2", string(data))
}
