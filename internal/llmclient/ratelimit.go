// internal/llmclient/ratelimit.go
package llmclient

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RateLimitError is returned for an HTTP 429; Wait is the delay computed
// from the response before the next attempt.
type RateLimitError struct {
	Status int
	Wait   time.Duration
	Body   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d), retry in %s", e.Status, e.Wait)
}

// StatusError is a non-2xx response other than 429.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model API returned HTTP %d: %s", e.Status, e.Body)
}

const (
	rateLimitBase = 600 * time.Millisecond
	rateLimitCap  = 8 * time.Second
	transientBase = 400 * time.Millisecond
)

// rateLimitHeaders are consulted in order.
var rateLimitHeaders = []string{
	"x-ratelimit-reset-requests",
	"x-ratelimit-reset-tokens",
	"retry-after",
}

var tryAgainRegex = regexp.MustCompile(`Please try again in\s*([0-9]+(?:\.[0-9]+)?)\s*(ms|s)?`)

// rateLimitWait picks the delay after a 429: reset headers first, then the
// "Please try again in N.NNNs" hint in the body, then a linear fallback
// capped at eight seconds.
func rateLimitWait(h http.Header, body string, attempt int) time.Duration {
	if d, ok := waitFromHeaders(h); ok {
		return d
	}
	if d, ok := waitFromBody(body); ok {
		return d
	}
	return fallbackRateLimitWait(attempt)
}

func fallbackRateLimitWait(attempt int) time.Duration {
	return min(rateLimitBase*time.Duration(attempt+1), rateLimitCap)
}

func waitFromHeaders(h http.Header) (time.Duration, bool) {
	if h == nil {
		return 0, false
	}
	for _, key := range rateLimitHeaders {
		if v := h.Get(key); v != "" {
			if d, ok := parseSeconds(v); ok {
				return d, true
			}
		}
	}
	return 0, false
}

func waitFromBody(body string) (time.Duration, bool) {
	m := tryAgainRegex.FindStringSubmatch(body)
	if len(m) < 2 {
		return 0, false
	}
	unit := "s"
	if len(m) > 2 && m[2] != "" {
		unit = m[2]
	}
	return parseSeconds(m[1] + unit)
}

// parseSeconds accepts "2", "1.686s", "250ms" and Go durations like "1m30s".
func parseSeconds(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return secondsToDuration(f)
	}
	if strings.HasSuffix(s, "ms") {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "ms"), 64); err == nil {
			return secondsToDuration(f / 1000)
		}
	}
	if strings.HasSuffix(s, "s") {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64); err == nil {
			return secondsToDuration(f)
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d, true
	}
	return 0, false
}

func secondsToDuration(f float64) (time.Duration, bool) {
	if f < 0 {
		return 0, false
	}
	return time.Duration(f*1000+0.5) * time.Millisecond, true
}
