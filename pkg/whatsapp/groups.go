package whatsapp

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

type GroupConfig struct {
	ID   string
	Name string
}

// GroupResolver finds the destination group among the joined groups and
// caches the result until the next resolution.
type GroupResolver struct {
	cfg  GroupConfig
	conn liveConn
	sf   singleflight.Group

	mu    sync.RWMutex
	group *Group
	kind  MatchKind
}

func NewGroupResolver(cfg GroupConfig, conn liveConn) *GroupResolver {
	return &GroupResolver{cfg: cfg, conn: conn}
}

// Resolve fetches the joined groups and selects the destination.
// Concurrent callers share one fetch.
func (r *GroupResolver) Resolve(ctx context.Context) (Group, error) {
	v, err, _ := r.sf.Do("resolve", func() (interface{}, error) {
		return r.resolve(ctx)
	})
	if err != nil {
		return Group{}, err
	}
	return v.(Group), nil
}

func (r *GroupResolver) resolve(ctx context.Context) (Group, error) {
	session, ok := r.conn.Live()
	if !ok {
		return Group{}, ErrNotConnected
	}

	groups, err := session.JoinedGroups(ctx)
	if err != nil {
		log.Component("groups").WithError(err).Error("Failed to fetch joined groups")
		return Group{}, fmt.Errorf("fetch joined groups: %w", err)
	}

	group, kind, found := SelectGroup(groups, r.cfg.ID, r.cfg.Name)
	if !found {
		r.mu.Lock()
		r.group = nil
		r.kind = MatchNone
		r.mu.Unlock()

		entry := log.Component("groups").
			WithField("configured_id", r.cfg.ID).
			WithField("configured_name", r.cfg.Name)
		entry.WithField("candidates", len(groups)).Warn("No joined group matches the destination")
		for _, g := range groups {
			entry.WithField("id", g.ID).WithField("name", g.Name).Warn("Candidate group")
		}
		return Group{}, ErrGroupNotFound
	}

	r.mu.Lock()
	r.group = &group
	r.kind = kind
	r.mu.Unlock()

	log.Component("groups").
		WithField("id", group.ID).
		WithField("name", group.Name).
		WithField("match", string(kind)).
		Info("Destination group resolved")
	return group, nil
}

// Cached returns the last resolved group.
func (r *GroupResolver) Cached() (Group, MatchKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.group == nil {
		return Group{}, MatchNone, false
	}
	return *r.group, r.kind, true
}

// Target is the chat id messages go to: the resolved group, else the
// configured static id, else "".
func (r *GroupResolver) Target() string {
	if group, _, ok := r.Cached(); ok {
		return group.ID
	}
	return NormalizeGroupID(r.cfg.ID)
}

func (r *GroupResolver) Config() GroupConfig {
	return r.cfg
}
