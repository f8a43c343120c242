// Package humanoid drives the page cursor and keyboard over CDP with
// human-like timing. The cursor follows a bent cubic Bezier whose duration
// comes from Fitts's law.
package humanoid

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/config"
	"github.com/xkilldash9x/clickpilot/internal/geometry"
)

var errNoPage = errors.New("humanoid: no page attached")

// Executor performs the raw browser interactions. Tests swap in a recorder.
type Executor interface {
	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error
	DispatchKeyEvent(ctx context.Context, p *input.DispatchKeyEventParams) error
}

// ActionRunner runs chromedp actions against a live tab; browser.Session
// satisfies it.
type ActionRunner interface {
	Run(ctx context.Context, actions ...chromedp.Action) error
}

// CDPExecutor is the production Executor.
type CDPExecutor struct {
	runner ActionRunner
}

// NewCDPExecutor binds an executor to a tab.
func NewCDPExecutor(runner ActionRunner) *CDPExecutor {
	return &CDPExecutor{runner: runner}
}

func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *CDPExecutor) DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error {
	return e.runner.Run(ctx, p)
}

func (e *CDPExecutor) DispatchKeyEvent(ctx context.Context, p *input.DispatchKeyEventParams) error {
	return e.runner.Run(ctx, p)
}

// Page is the tab behind the injector; browser.Session satisfies it.
type Page interface {
	Viewport(ctx context.Context) (geometry.Window, error)
	ResetZoom(ctx context.Context) error
}

// Option customises an Injector.
type Option func(*Injector)

// WithPage lets the injector report its window and reset the page zoom.
func WithPage(p Page) Option {
	return func(h *Injector) { h.page = p }
}

// Injector moves, clicks and types inside the page viewport. Coordinates are
// CSS pixels relative to the viewport origin.
type Injector struct {
	cfg      config.HumanoidConfig
	executor Executor
	page     Page
	logger   *zap.Logger

	mu         sync.Mutex
	currentPos Vector2D
	rng        *rand.Rand
}

// New creates an Injector. A zero cfg.Seed seeds the RNG from the clock.
func New(cfg config.HumanoidConfig, executor Executor, logger *zap.Logger, opts ...Option) *Injector {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.StepsPerSecond <= 0 {
		cfg.StepsPerSecond = 100
	}
	if cfg.FittsW <= 0 {
		cfg.FittsW = 30
	}
	h := &Injector{
		cfg:      cfg,
		executor: executor,
		logger:   logger.Named("humanoid"),
		rng:      rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WindowGeometry is the CSS viewport at the origin; page events are
// already in viewport coordinates.
func (h *Injector) WindowGeometry(ctx context.Context) (geometry.Window, error) {
	if h.page == nil {
		return geometry.Window{}, errNoPage
	}
	return h.page.Viewport(ctx)
}

// ResetZoom sets the page scale factor back to 1.
func (h *Injector) ResetZoom(ctx context.Context) error {
	if h.page == nil {
		return errNoPage
	}
	return h.page.ResetZoom(ctx)
}

// Position returns the last dispatched cursor position.
func (h *Injector) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// float64n and normFloat64 serialise access to the shared RNG.
func (h *Injector) float64n() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

func (h *Injector) normFloat64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.NormFloat64()
}

// holdDuration picks a press duration in [min, max] milliseconds.
func (h *Injector) holdDuration() time.Duration {
	lo, hi := h.cfg.ClickHoldMinMs, h.cfg.ClickHoldMaxMs
	if hi < lo {
		hi = lo
	}
	ms := float64(lo) + h.float64n()*float64(hi-lo)
	return time.Duration(ms * float64(time.Millisecond))
}
