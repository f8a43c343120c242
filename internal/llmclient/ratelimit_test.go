// internal/llmclient/ratelimit_test.go
package llmclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitWait(t *testing.T) {
	header := func(k, v string) http.Header {
		h := http.Header{}
		h.Set(k, v)
		return h
	}

	tests := []struct {
		name    string
		header  http.Header
		body    string
		attempt int
		want    time.Duration
	}{
		{"reset requests header", header("x-ratelimit-reset-requests", "1.5s"), "", 0, 1500 * time.Millisecond},
		{"reset tokens header in ms", header("x-ratelimit-reset-tokens", "250ms"), "", 0, 250 * time.Millisecond},
		{"retry-after integer seconds", header("Retry-After", "2"), "", 0, 2 * time.Second},
		{"go duration header", header("x-ratelimit-reset-requests", "1m30s"), "", 0, 90 * time.Second},
		{"body hint", nil, `{"error":{"message":"Rate limit reached. Please try again in 1.686s. Visit ..."}}`, 0, 1686 * time.Millisecond},
		{"body hint in ms", nil, "Please try again in 120ms", 0, 120 * time.Millisecond},
		{"header beats body", header("retry-after", "3"), "Please try again in 1s", 0, 3 * time.Second},
		{"garbage header falls through to body", header("retry-after", "soon"), "Please try again in 1s", 0, time.Second},
		{"fallback first attempt", nil, "slow down", 0, 600 * time.Millisecond},
		{"fallback third attempt", nil, "", 2, 1800 * time.Millisecond},
		{"fallback capped", nil, "", 40, 8 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rateLimitWait(tt.header, tt.body, tt.attempt))
		})
	}
}

func TestAttemptBackOff(t *testing.T) {
	b := newAttemptBackOff(100 * time.Millisecond)
	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 1, b.Attempt())

	b.waitNext(5 * time.Second)
	assert.Equal(t, 5*time.Second, b.NextBackOff(), "explicit wait wins once")
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff(), "then linear again")

	b.Reset()
	assert.Equal(t, 0, b.Attempt())
}
