package backend

import (
	"sync"
	"time"

	"github.com/dkeye/meetcore/internal/domain"
)

// JoinLimiter caps room create/join attempts per user in a sliding window.
type JoinLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewJoinLimiter returns nil when limit is not positive; a nil limiter allows everything.
func NewJoinLimiter(limit int, interval time.Duration) *JoinLimiter {
	if limit <= 0 {
		return nil
	}
	return &JoinLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (l *JoinLimiter) Allow(uid domain.UserID) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.interval)

	attempts := l.history[uid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= l.limit {
		l.history[uid] = fresh
		return false
	}
	l.history[uid] = append(fresh, now)
	return true
}

// Forget drops the history of a user that logged out.
func (l *JoinLimiter) Forget(uid domain.UserID) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.history, uid)
	l.mu.Unlock()
}
