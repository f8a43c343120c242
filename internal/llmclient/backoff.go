// internal/llmclient/backoff.go
package llmclient

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// attemptBackOff waits base*(attempt+1) between attempts unless the last
// attempt set an explicit wait (a rate-limit hint).
type attemptBackOff struct {
	base     time.Duration
	attempt  int
	override time.Duration
	hasWait  bool
}

var _ backoff.BackOff = (*attemptBackOff)(nil)

func newAttemptBackOff(base time.Duration) *attemptBackOff {
	return &attemptBackOff{base: base}
}

// waitNext makes the next NextBackOff return d.
func (b *attemptBackOff) waitNext(d time.Duration) {
	b.override = d
	b.hasWait = true
}

func (b *attemptBackOff) NextBackOff() time.Duration {
	d := b.base * time.Duration(b.attempt+1)
	if b.hasWait {
		d = b.override
		b.hasWait = false
	}
	b.attempt++
	return d
}

func (b *attemptBackOff) Reset() {
	b.attempt = 0
	b.hasWait = false
}

// Attempt is the zero-based index of the attempt in flight.
func (b *attemptBackOff) Attempt() int {
	return b.attempt
}
