// Package ratelimit admits or rejects requests by per-user request
// velocity over a sliding window.
//
// A request is admitted iff fewer than the configured limit of requests
// fall within the trailing window. Rejection is fail-fast: the limiter
// never delays a request. Each user's window is guarded by its own lock,
// so unrelated users never contend.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRateLimitExceeded rejects a request over the velocity limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// window is one user's request timestamps within the trailing window,
// oldest first.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Limiter is a per-user sliding-window rate limiter.
//
// Thread Safety: per-user windows are created under a short map lock and
// mutated only under their own lock. Safe for concurrent use.
type Limiter struct {
	limit  int
	span   time.Duration

	mu      sync.RWMutex
	windows map[string]*window

	rejected atomic.Int64

	now func() time.Time
}

// New creates a limiter admitting at most limit requests per user within
// the trailing span.
func New(limit int, span time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		span:    span,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Admit decides one request. Admission appends the current timestamp and
// prunes entries older than the window; rejection returns
// ErrRateLimitExceeded without recording the attempt.
func (l *Limiter) Admit(userID string) error {
	w := l.window(userID)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	w.prune(now.Add(-l.span))

	if len(w.stamps) >= l.limit {
		l.rejected.Add(1)
		return fmt.Errorf("%w: %d requests in %s", ErrRateLimitExceeded, len(w.stamps), l.span)
	}
	w.stamps = append(w.stamps, now)
	return nil
}

// Remaining reports how many requests the user may still issue in the
// current window.
func (l *Limiter) Remaining(userID string) int {
	w := l.window(userID)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(l.now().Add(-l.span))
	if n := l.limit - len(w.stamps); n > 0 {
		return n
	}
	return 0
}

// Rejected returns the total number of rejected requests.
func (l *Limiter) Rejected() int64 {
	return l.rejected.Load()
}

// Sweep drops windows that have gone fully idle, reclaiming memory for
// users who stopped issuing commands. Returns how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.span)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, w := range l.windows {
		w.mu.Lock()
		w.prune(cutoff)
		empty := len(w.stamps) == 0
		w.mu.Unlock()
		if empty {
			delete(l.windows, id)
			n++
		}
	}
	return n
}

// window returns the user's window, creating it on first use.
func (l *Limiter) window(userID string) *window {
	l.mu.RLock()
	w, ok := l.windows[userID]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[userID]; ok {
		return w
	}
	w = &window{}
	l.windows[userID] = w
	return w
}

// prune drops timestamps at or before the cutoff. Caller holds w.mu.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
