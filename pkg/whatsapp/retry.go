package whatsapp

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 60 * time.Second
	maxRetryCount  = 8
)

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// newRetryBackoff yields 1s, 2s, 4s ... capped at 60s, without jitter and
// without ever giving up.
func newRetryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = retryMaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type pendingRetry struct {
	reset bool
	delay time.Duration
	timer timer
}

// retryScheduler keeps at most one restart timer in flight.
type retryScheduler struct {
	mu        sync.Mutex
	backoff   *backoff.ExponentialBackOff
	count     int
	pending   *pendingRetry
	afterFunc afterFunc
	fire      func(reset bool)
}

func newRetryScheduler(after afterFunc, fire func(reset bool)) *retryScheduler {
	if after == nil {
		after = realAfterFunc
	}
	return &retryScheduler{
		backoff:   newRetryBackoff(),
		afterFunc: after,
		fire:      fire,
	}
}

// Schedule arms the restart timer. A request while a timer is pending is
// dropped and reported with scheduled=false.
func (s *retryScheduler) Schedule(reset bool) (delay time.Duration, scheduled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return s.pending.delay, false
	}

	delay = s.backoff.NextBackOff()
	if s.count < maxRetryCount {
		s.count++
	}

	p := &pendingRetry{reset: reset, delay: delay}
	p.timer = s.afterFunc(delay, func() { s.run(p) })
	s.pending = p
	return delay, true
}

func (s *retryScheduler) run(p *pendingRetry) {
	s.mu.Lock()
	if s.pending != p {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()

	s.fire(p.reset)
}

// Cancel stops a pending timer, if any.
func (s *retryScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending.timer.Stop()
		s.pending = nil
	}
}

// Reset clears the attempt counter after a successful open.
func (s *retryScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count = 0
	s.backoff.Reset()
}

func (s *retryScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *retryScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
