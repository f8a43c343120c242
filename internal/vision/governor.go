package vision

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Governor tracks consecutive rate-limit failures across every model call
// in the process and imposes a full cool-down once they reach a threshold.
// A single Governor is created at startup and shared by reference.
type Governor struct {
	mu                  sync.Mutex
	consecutiveFailures uint
	lastFailure         time.Time

	threshold uint
	pause     time.Duration
	logger    *zap.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
	// onPause is notified each time a cool-down begins.
	onPause func(d time.Duration)
}

// GovernorOption customises a Governor.
type GovernorOption func(*Governor)

// WithPauseHook registers a callback invoked when a cool-down starts.
func WithPauseHook(fn func(time.Duration)) GovernorOption {
	return func(g *Governor) { g.onPause = fn }
}

// NewGovernor creates a Governor. Non-positive arguments fall back to a
// threshold of 3 and a five minute pause.
func NewGovernor(threshold int, pause time.Duration, logger *zap.Logger, opts ...GovernorOption) *Governor {
	if threshold <= 0 {
		threshold = 3
	}
	if pause <= 0 {
		pause = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Governor{
		threshold: uint(threshold),
		pause:     pause,
		logger:    logger.Named("governor"),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecordSuccess resets the failure counter.
func (g *Governor) RecordSuccess() {
	g.mu.Lock()
	g.consecutiveFailures = 0
	g.lastFailure = time.Time{}
	g.mu.Unlock()
}

// RecordFailure notes a rate-limit attributable failure.
func (g *Governor) RecordFailure() {
	g.mu.Lock()
	g.consecutiveFailures++
	g.lastFailure = time.Now()
	n := g.consecutiveFailures
	g.mu.Unlock()

	g.logger.Debug("Rate-limit failure recorded.", zap.Uint("consecutive_failures", n))
}

// ShouldPause reports whether callers must cool down before the next call.
func (g *Governor) ShouldPause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consecutiveFailures >= g.threshold
}

// PauseDuration is the fixed cool-down interval.
func (g *Governor) PauseDuration() time.Duration {
	return g.pause
}

// ConsecutiveFailures returns the current counter.
func (g *Governor) ConsecutiveFailures() uint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consecutiveFailures
}

// LastFailure returns the time of the most recent failure, zero if none.
func (g *Governor) LastFailure() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFailure
}

// Wait is called before every model request. When the threshold has been
// reached it sleeps the full pause and then resets the counter. The lock is
// never held while sleeping.
func (g *Governor) Wait(ctx context.Context) error {
	if !g.ShouldPause() {
		return nil
	}

	g.logger.Warn("Rate limited repeatedly; cooling down before the next model call.",
		zap.Duration("pause", g.pause),
		zap.Uint("consecutive_failures", g.ConsecutiveFailures()))
	if g.onPause != nil {
		g.onPause(g.pause)
	}

	if err := g.sleep(ctx, g.pause); err != nil {
		return err
	}
	g.RecordSuccess()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
