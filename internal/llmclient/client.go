// internal/llmclient/client.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/llmutil"
	"github.com/xkilldash9x/clickpilot/internal/network"
)

// Tier names which model endpoint serves a request.
type Tier string

const (
	// TierPoint serves click-point resolution on screenshots.
	TierPoint Tier = "point"
	// TierReasoning serves candidate decisions and yes/no validation.
	TierReasoning Tier = "reasoning"
)

// Call outcomes reported to a CallObserver.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeMalformed   = "malformed"
)

// Request is one vision/chat exchange: a system instruction, a user prompt
// and an optional PNG attachment.
type Request struct {
	Tier   Tier
	System string
	Prompt string
	Image  []byte
	// Accept, when set, inspects the reply content; an error makes the
	// attempt count as failed and triggers a retry.
	Accept func(content string) error
}

// VisionClient sends a Request and returns the model's message content.
type VisionClient interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Governor is the shared rate-limit state consulted before every attempt.
type Governor interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordFailure()
}

// CallObserver receives one notification per HTTP attempt.
type CallObserver interface {
	ObserveModelCall(tier, outcome string, d time.Duration)
}

// Option configures the HTTP clients.
type Option func(*common)

// WithGovernor attaches the shared rate-limit governor.
func WithGovernor(g Governor) Option {
	return func(c *common) { c.governor = g }
}

// WithObserver attaches a metrics observer.
func WithObserver(o CallObserver) Option {
	return func(c *common) { c.observer = o }
}

// WithRateLimit paces outbound attempts to rps requests per second.
// Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *common) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithConnections sizes the per-host connection pool for n concurrent
// requests.
func WithConnections(n int) Option {
	return func(c *common) { c.conns = n }
}

// withTimer replaces the retry timer; tests use it to skip real waits.
func withTimer(t backoff.Timer) Option {
	return func(c *common) { c.timer = t }
}

// common holds the plumbing shared by every provider.
type common struct {
	governor Governor
	observer CallObserver
	limiter  *rate.Limiter
	logger   *zap.Logger
	timer    backoff.Timer
	conns    int
}

func newCommon(logger *zap.Logger, opts []Option) common {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := common{logger: logger}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// httpClient builds the pooled client every provider sends through.
func (c *common) httpClient(timeout time.Duration) *http.Client {
	hc := network.NewDefaultClientConfig().WithTimeout(timeout).WithConns(c.conns)
	hc.Logger = c.logger
	return network.NewClient(hc)
}

// beforeAttempt honours the governor cool-down and the pacing limiter.
func (c *common) beforeAttempt(ctx context.Context) error {
	if c.governor != nil {
		if err := c.governor.Wait(ctx); err != nil {
			return err
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *common) observe(tier Tier, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveModelCall(string(tier), outcome, time.Since(start))
	}
}

func (c *common) rateLimited() {
	if c.governor != nil {
		c.governor.RecordFailure()
	}
}

func (c *common) succeeded() {
	if c.governor != nil {
		c.governor.RecordSuccess()
	}
}

// CompleteJSON sends req and decodes the reply into T. Replies that do not
// decode are retried like any other failed attempt.
func CompleteJSON[T any](ctx context.Context, client VisionClient, req Request) (*T, error) {
	var out *T
	req.Accept = func(content string) error {
		v, err := llmutil.ParseJSONResponse[T](content)
		if err != nil {
			return err
		}
		out = v
		return nil
	}
	if _, err := client.Complete(ctx, req); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty decode", llmutil.ErrMalformedResponse)
	}
	return out, nil
}
