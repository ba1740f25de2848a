package rate

import (
	"context"
	"sync"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Result is a limiter decision. ResetAt is only meaningful when Allowed is
// false: it is the instant the current window ends.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter decides login attempts per identifier. Implementations never
// return errors; a failure to decide is a denial.
type Limiter interface {
	Check(ctx context.Context, identifier string) Result
	Reset(ctx context.Context, identifier string)
}

type record struct {
	count         int
	windowStarted time.Time
}

// MemoryLimiter is the in-process fixed-window [Limiter]. All state lives in
// a single map guarded by a mutex; expiry decisions use the injected clock
// only.
type MemoryLimiter struct {
	mu      sync.Mutex
	records map[string]*record
	config  Config
	now     func() time.Time
}

// NewMemoryLimiter creates a [MemoryLimiter] with the given budget and
// clock.
func NewMemoryLimiter(cfg Config, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		records: make(map[string]*record),
		config:  cfg,
		now:     now,
	}
}

// Check records one attempt for the identifier and decides it.
func (l *MemoryLimiter) Check(_ context.Context, identifier string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	rec, ok := l.records[identifier]
	if !ok {
		l.records[identifier] = &record{count: 1, windowStarted: now}
		return Result{Allowed: true, Remaining: l.config.MaxAttempts - 1}
	}

	// A stale record never has its counter advanced; expiry resets it.
	if now.Sub(rec.windowStarted) > l.config.Window {
		rec.count = 1
		rec.windowStarted = now
		return Result{Allowed: true, Remaining: l.config.MaxAttempts - 1}
	}

	if rec.count >= l.config.MaxAttempts {
		return Result{
			Allowed: false,
			ResetAt: rec.windowStarted.Add(l.config.Window),
		}
	}

	rec.count++
	return Result{Allowed: true, Remaining: l.config.MaxAttempts - rec.count}
}

// Reset clears the identifier's window. Called after successful
// authentication so a legitimate user is not penalized by earlier failures.
func (l *MemoryLimiter) Reset(_ context.Context, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, identifier)
}
