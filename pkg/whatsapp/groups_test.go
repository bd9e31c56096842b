package whatsapp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConn struct {
	session Session
	live    bool
}

func (c staticConn) Live() (Session, bool) {
	return c.session, c.live
}

func TestResolveRequiresConnection(t *testing.T) {
	r := NewGroupResolver(GroupConfig{Name: "Radar"}, staticConn{})

	_, err := r.Resolve(context.Background())

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, "", r.Target())
}

func TestResolveCachesMatch(t *testing.T) {
	s := &fakeSession{groups: []Group{{ID: "1@g.us", Name: "Other"}, {ID: "2@g.us", Name: "🚨 Radar-Alerts"}}}
	r := NewGroupResolver(GroupConfig{Name: "radar alerts"}, staticConn{session: s, live: true})

	group, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "2@g.us", group.ID)
	cached, kind, ok := r.Cached()
	require.True(t, ok)
	assert.Equal(t, group, cached)
	assert.Equal(t, MatchAlnum, kind)
	assert.Equal(t, "2@g.us", r.Target())
}

func TestResolveNoMatchClearsCache(t *testing.T) {
	s := &fakeSession{groups: []Group{{ID: "1@g.us", Name: "Radar"}}}
	r := NewGroupResolver(GroupConfig{ID: "555", Name: "Radar"}, staticConn{session: s, live: true})
	_, err := r.Resolve(context.Background())
	require.NoError(t, err)

	s.mu.Lock()
	s.groups = []Group{{ID: "3@g.us", Name: "Work"}, {ID: "4@g.us", Name: "Home"}}
	s.mu.Unlock()

	_, err = r.Resolve(context.Background())

	assert.ErrorIs(t, err, ErrGroupNotFound)
	_, _, ok := r.Cached()
	assert.False(t, ok)
	assert.Equal(t, "555@g.us", r.Target(), "falls back to the configured id")
}

func TestResolveFetchErrorKeepsCache(t *testing.T) {
	s := &fakeSession{groups: []Group{{ID: "1@g.us", Name: "Radar"}}}
	r := NewGroupResolver(GroupConfig{Name: "Radar"}, staticConn{session: s, live: true})
	_, err := r.Resolve(context.Background())
	require.NoError(t, err)

	s.mu.Lock()
	s.groupsErr = errors.New("iq timed out")
	s.mu.Unlock()

	_, err = r.Resolve(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGroupNotFound)
	cached, _, ok := r.Cached()
	require.True(t, ok)
	assert.Equal(t, "1@g.us", cached.ID)
}

type blockingGroups struct {
	fakeSession
	release chan struct{}
	started chan struct{}
}

func (b *blockingGroups) JoinedGroups(ctx context.Context) ([]Group, error) {
	b.started <- struct{}{}
	<-b.release
	return b.fakeSession.JoinedGroups(ctx)
}

func TestConcurrentResolveSharesFetch(t *testing.T) {
	s := &blockingGroups{
		fakeSession: fakeSession{groups: []Group{{ID: "1@g.us", Name: "Radar"}}},
		release:     make(chan struct{}),
		started:     make(chan struct{}, 8),
	}
	r := NewGroupResolver(GroupConfig{Name: "Radar"}, staticConn{session: s, live: true})

	var wg sync.WaitGroup
	results := make([]Group, 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = r.Resolve(context.Background())
	}()
	<-s.started

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Resolve(context.Background())
		}(i)
	}
	// Let the joiners reach the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(s.release)
	wg.Wait()

	s.mu.Lock()
	calls := s.groupCalls
	s.mu.Unlock()
	assert.Equal(t, 1, calls)
	for _, g := range results {
		assert.Equal(t, "1@g.us", g.ID)
	}
}
