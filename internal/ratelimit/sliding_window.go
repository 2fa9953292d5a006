package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/elibrary/apigateway/internal/observability"
)

// SlidingWindowLimiter implements the sliding window log algorithm: each key
// keeps the timestamps of its admitted requests inside the trailing window.
type SlidingWindowLimiter struct {
	burst  int
	window time.Duration
	now    func() time.Time
	logger observability.Logger

	windows sync.Map

	stopOnce sync.Once
	stopCh   chan struct{}
}

// windowState holds the admitted timestamps for a key, oldest first.
type windowState struct {
	mu       sync.Mutex
	requests []time.Time
	// removed is set by Sweep once the state is no longer in the map.
	removed bool
}

// Option configures a SlidingWindowLimiter.
type Option func(*SlidingWindowLimiter)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindowLimiter) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(l *SlidingWindowLimiter) {
		l.logger = logger
	}
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(cfg Config, opts ...Option) *SlidingWindowLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	l := &SlidingWindowLimiter{
		burst:  cfg.Burst,
		window: cfg.Window,
		now:    time.Now,
		logger: observability.NopLogger(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit implements Limiter. Eviction, the count check and the append are
// atomic per key.
func (l *SlidingWindowLimiter) Admit(key string) bool {
	for {
		ws := l.getOrCreateWindowState(key)

		ws.mu.Lock()
		if ws.removed {
			ws.mu.Unlock()
			continue
		}

		now := l.now()
		l.evictExpired(ws, now)
		if len(ws.requests) >= l.burst {
			ws.mu.Unlock()
			return false
		}
		ws.requests = append(ws.requests, now)
		ws.mu.Unlock()
		return true
	}
}

// Count returns the number of requests currently recorded for key.
func (l *SlidingWindowLimiter) Count(key string) int {
	value, ok := l.windows.Load(key)
	if !ok {
		return 0
	}
	ws := value.(*windowState)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	l.evictExpired(ws, l.now())
	return len(ws.requests)
}

// getOrCreateWindowState retrieves or creates a window state for the given key.
func (l *SlidingWindowLimiter) getOrCreateWindowState(key string) *windowState {
	if value, ok := l.windows.Load(key); ok {
		return value.(*windowState)
	}
	value, _ := l.windows.LoadOrStore(key, &windowState{
		requests: make([]time.Time, 0, l.burst),
	})
	return value.(*windowState)
}

// evictExpired drops timestamps older than now-window from the front.
func (l *SlidingWindowLimiter) evictExpired(ws *windowState, now time.Time) {
	windowStart := now.Add(-l.window)
	i := 0
	for i < len(ws.requests) && ws.requests[i].Before(windowStart) {
		i++
	}
	if i > 0 {
		ws.requests = append(ws.requests[:0], ws.requests[i:]...)
	}
}

// Sweep removes keys that have no timestamps left inside the window and
// returns how many were removed.
func (l *SlidingWindowLimiter) Sweep() int {
	removed := 0
	now := l.now()
	l.windows.Range(func(key, value any) bool {
		ws := value.(*windowState)
		ws.mu.Lock()
		l.evictExpired(ws, now)
		if len(ws.requests) == 0 {
			ws.removed = true
			l.windows.Delete(key)
			removed++
		}
		ws.mu.Unlock()
		return true
	})
	return removed
}

// Size returns the number of tracked keys.
func (l *SlidingWindowLimiter) Size() int {
	n := 0
	l.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartSweeper runs Sweep every interval until ctx is done or Stop is called.
// A non-positive interval disables sweeping.
func (l *SlidingWindowLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					l.logger.Debug("swept stale rate limit keys",
						observability.Int("removed", n),
						observability.Int("remaining", l.Size()),
					)
				}
			}
		}
	}()
}

// Stop stops the sweeper goroutine.
func (l *SlidingWindowLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}
