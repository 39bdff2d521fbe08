// Package backoff computes the delays between tool-call retry attempts.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy describes an exponential backoff ladder.
type Policy struct {
	// Initial is the delay after the first failed attempt.
	Initial time.Duration

	// Max caps the delay regardless of attempt count.
	Max time.Duration

	// Factor multiplies the delay each further attempt.
	Factor float64

	// Jitter in [0, 1] randomizes each delay upward by at most that
	// fraction, so synchronized retries spread out.
	Jitter float64

	// Rand supplies the jitter randomness in [0, 1). Nil uses the shared
	// source; tests inject a constant for deterministic delays.
	Rand func() float64
}

// ToolCallPolicy is the executor's retry ladder: 100ms, 400ms, 1.6s.
func ToolCallPolicy() Policy {
	return Policy{
		Initial: 100 * time.Millisecond,
		Max:     5 * time.Second,
		Factor:  4,
		Jitter:  0.1,
	}
}

// Delay returns the backoff before retry attempt n (1-indexed: Delay(1) is
// the pause after the first failure).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.Initial) * math.Pow(p.Factor, float64(attempt-1))
	random := p.Rand
	if random == nil {
		random = rand.Float64 // #nosec G404 -- jitter needs no crypto randomness
	}
	d := base * (1 + p.Jitter*random())
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d)
}

// Sleep waits out the delay for retry attempt n, returning early with
// ctx.Err() on cancellation.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
