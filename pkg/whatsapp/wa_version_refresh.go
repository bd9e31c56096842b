package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"golang.org/x/sync/singleflight"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

const DefaultVersionRefreshMinInterval = 10 * time.Minute

type VersionStatus struct {
	CurrentVersion string     `json:"current_version"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// VersionRefresher fetches the latest WhatsApp Web version and applies it
// process-wide. A client-outdated close forces a refresh before restarting.
type VersionRefresher struct {
	minInterval time.Duration
	fetch       func(ctx context.Context) (*store.WAVersionContainer, error)
	group       singleflight.Group

	mu            sync.RWMutex
	lastRefreshed *time.Time
	lastError     string
}

func NewVersionRefresher(minInterval time.Duration) *VersionRefresher {
	if minInterval < 0 {
		minInterval = DefaultVersionRefreshMinInterval
	}
	return &VersionRefresher{
		minInterval: minInterval,
		fetch: func(ctx context.Context) (*store.WAVersionContainer, error) {
			return whatsmeow.GetLatestVersion(ctx, &http.Client{Timeout: 15 * time.Second})
		},
	}
}

func (r *VersionRefresher) Status() VersionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *time.Time
	if r.lastRefreshed != nil {
		t := *r.lastRefreshed
		last = &t
	}
	return VersionStatus{
		CurrentVersion: store.GetWAVersion().String(),
		LastRefreshed:  last,
		LastError:      r.lastError,
	}
}

// Refresh applies the latest version. Without force it is throttled by the
// minimum interval; refreshed reports whether a fetch happened.
func (r *VersionRefresher) Refresh(ctx context.Context, force bool) (refreshed bool, err error) {
	if !force && r.minInterval > 0 {
		r.mu.RLock()
		last := r.lastRefreshed
		r.mu.RUnlock()
		if last != nil && time.Since(*last) < r.minInterval {
			return false, nil
		}
	}

	_, err, _ = r.group.Do("refresh", func() (interface{}, error) {
		latest, err := r.fetch(ctx)
		if err == nil && latest == nil {
			err = errors.New("latest WhatsApp Web version is nil")
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		now := time.Now()
		r.lastRefreshed = &now
		if err != nil {
			r.lastError = err.Error()
			return nil, err
		}
		r.lastError = ""
		store.SetWAVersion(*latest)
		return nil, nil
	})
	if err != nil {
		log.Component("whatsapp").WithError(err).Error("WA Web version refresh failed")
		return true, err
	}

	log.Component("whatsapp").WithField("version", store.GetWAVersion().String()).Info("WA Web version refreshed")
	return true, nil
}
