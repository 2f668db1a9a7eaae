package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/natours/pkg/middleware"
)

// visitor tracks a token bucket per key.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is an in-process token bucket refilling limit tokens per window. It
// is used when Redis is not configured; counts are per instance.
type Local struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLocal creates an in-memory limiter.
func NewLocal(limit int, window time.Duration) *Local {
	return &Local{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow takes one token for key.
func (l *Local) Allow(_ context.Context, key string) (middleware.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	allowed := v.limiter.AllowN(now, 1)
	tokens := v.limiter.TokensAt(now)

	resetIn := time.Duration(0)
	if tokens < float64(l.limit) {
		resetIn = time.Duration((float64(l.limit) - tokens) / float64(v.limiter.Limit()) * float64(time.Second))
	}
	return middleware.RateDecision{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: max(int(tokens), 0),
		ResetIn:   resetIn,
	}, nil
}

// sweep evicts visitors idle for a full window; their buckets are full again.
func (l *Local) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, key)
		}
	}
}
