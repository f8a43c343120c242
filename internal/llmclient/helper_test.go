// internal/llmclient/helper_test.go
package llmclient

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

// instantTimer fires immediately and records every requested wait.
type instantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func (t *instantTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

type fakeGovernor struct {
	mu        sync.Mutex
	waits     int
	successes int
	failures  int
	waitErr   error
}

func (g *fakeGovernor) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waits++
	return g.waitErr
}

func (g *fakeGovernor) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.successes++
}

func (g *fakeGovernor) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures++
}

type observedCall struct {
	tier    string
	outcome string
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []observedCall
}

func (o *fakeObserver) ObserveModelCall(tier, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, observedCall{tier: tier, outcome: outcome})
}

func (o *fakeObserver) Outcomes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.calls))
	for _, c := range o.calls {
		out = append(out, c.outcome)
	}
	return out
}

// stubClient records requests and replies with a fixed value.
type stubClient struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []Request
}

func (s *stubClient) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return "", s.err
	}
	if req.Accept != nil {
		if err := req.Accept(s.reply); err != nil {
			return "", err
		}
	}
	return s.reply, nil
}

func testModelConfig(provider, baseURL string) config.ModelConfig {
	return config.ModelConfig{
		Provider:   provider,
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "test-model",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	}
}
