// internal/llmclient/retry.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/llmutil"
)

// attemptFunc performs one HTTP exchange. attempt is zero-based.
type attemptFunc func(ctx context.Context, attempt int) (string, error)

// retry runs fn up to maxAttempts times. Rate-limit errors wait the delay
// they carry; everything else waits linearly longer each attempt.
func (c *common) retry(ctx context.Context, req Request, maxAttempts int, fn attemptFunc) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := newAttemptBackOff(transientBase)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)

	var content string
	operation := func() error {
		attempt := b.Attempt()
		if err := c.beforeAttempt(ctx); err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		out, err := fn(ctx, attempt)
		if err == nil && req.Accept != nil {
			err = req.Accept(out)
		}
		if err != nil {
			return c.classify(ctx, req.Tier, b, start, err)
		}

		c.succeeded()
		c.observe(req.Tier, OutcomeOK, start)
		content = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Model request failed; retrying.",
			zap.String("tier", string(req.Tier)),
			zap.Int("attempt", b.Attempt()),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, c.timer); err != nil {
		return "", fmt.Errorf("model request failed after %d attempt(s): %w", b.Attempt()+1, err)
	}
	return content, nil
}

func (c *common) classify(ctx context.Context, tier Tier, b *attemptBackOff, start time.Time, err error) error {
	if ctx.Err() != nil {
		c.observe(tier, OutcomeError, start)
		return backoff.Permanent(ctx.Err())
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		c.rateLimited()
		c.observe(tier, OutcomeRateLimited, start)
		b.waitNext(rl.Wait)
		return err
	}

	if errors.Is(err, llmutil.ErrMalformedResponse) {
		c.observe(tier, OutcomeMalformed, start)
		return err
	}

	c.observe(tier, OutcomeError, start)
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return backoff.Permanent(err)
		}
	}
	return err
}
