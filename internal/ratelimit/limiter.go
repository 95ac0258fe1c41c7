package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config holds the budget for one source.
type Config struct {
	Requests       int           // grants allowed per Window
	Window         time.Duration // rolling quota window
	BackoffBase    time.Duration // first penalty delay
	BackoffCap     time.Duration // maximum penalty delay
	RecoveryStreak int           // consecutive successes that end a penalty
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Requests:       60,
		Window:         time.Minute,
		BackoffBase:    2 * time.Second,
		BackoffCap:     5 * time.Minute,
		RecoveryStreak: 5,
	}
}

// Limiter tracks the request budget for a single source. All state is
// scoped to the one source; limiters never share state.
type Limiter struct {
	mu  sync.Mutex
	cfg Config

	grants       []time.Time // rolling log of grant times within the window
	penalized    bool
	penaltyCount int       // consecutive penalties, drives backoff growth
	penaltyUntil time.Time // no grants before this time while penalized
	streak       int       // consecutive successes while penalized

	now func() time.Time // injectable for tests
}

// New creates a Limiter for one source.
func New(cfg Config) *Limiter {
	if cfg.Requests < 1 {
		cfg.Requests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = cfg.BackoffBase
	}
	if cfg.RecoveryStreak < 1 {
		cfg.RecoveryStreak = 1
	}
	return &Limiter{
		cfg: cfg,
		now: time.Now,
	}
}

// Reserve attempts to take a token. It either grants immediately and
// returns (true, 0), or returns (false, wait) with the minimum time
// until the next token can be available. Callers must not proceed
// without a grant.
func (l *Limiter) Reserve() (granted bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if l.penalized && now.Before(l.penaltyUntil) {
		return false, l.penaltyUntil.Sub(now)
	}

	l.prune(now)

	quota := l.cfg.Requests
	if l.penalized {
		// Penalized sources run at half rate until they recover.
		quota = max(1, quota/2)
	}

	if len(l.grants) < quota {
		l.grants = append(l.grants, now)
		return true, 0
	}

	return false, l.grants[0].Add(l.cfg.Window).Sub(now)
}

// Acquire blocks until a token is granted or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		granted, wait := l.Reserve()
		if granted {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Penalize records a quota-exceeded signal from the source. Each
// consecutive penalty doubles the backoff delay, capped at BackoffCap.
func (l *Limiter) Penalize() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.penalized = true
	l.streak = 0
	l.penaltyCount++

	delay := l.cfg.BackoffBase
	for i := 1; i < l.penaltyCount && delay < l.cfg.BackoffCap; i++ {
		delay *= 2
	}
	if delay > l.cfg.BackoffCap {
		delay = l.cfg.BackoffCap
	}
	l.penaltyUntil = l.now().Add(delay)
}

// Success records a successful call. After RecoveryStreak consecutive
// successes a penalized limiter returns to its normal rate.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.penalized {
		return
	}
	l.streak++
	if l.streak >= l.cfg.RecoveryStreak {
		l.penalized = false
		l.penaltyCount = 0
		l.streak = 0
	}
}

// Penalized reports whether the limiter is currently in a penalty.
func (l *Limiter) Penalized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.penalized
}

// prune drops grants that have aged out of the rolling window.
// Callers must hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(l.grants) && !l.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}
