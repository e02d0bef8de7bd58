package recovery

import (
	"math"
	"math/rand"
	"time"

	"overdub/internal/services"
)

// Backoff computes retry delays. The delay doubles per attempt from Base,
// is scaled per error kind, carries up to 10% random jitter so parallel
// retries spread out, and never exceeds Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
	rng  *rand.Rand
}

// NewBackoff returns a backoff policy with the given bounds.
func NewBackoff(base, max time.Duration) Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 2 * time.Minute
	}
	return Backoff{Base: base, Max: max}
}

// WithRand overrides the jitter source (for testing).
func (b Backoff) WithRand(rng *rand.Rand) Backoff {
	b.rng = rng
	return b
}

// Delay returns the wait before retry number attempt (0-based) of an error
// of the given kind.
func (b Backoff) Delay(kind services.Kind, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.Base) * math.Pow(2, float64(attempt)) * kindMultiplier(kind)
	delay += b.jitter() * 0.1 * delay
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	return time.Duration(delay)
}

// kindMultiplier stretches delays for failure modes that tend to need more
// time to clear.
func kindMultiplier(kind services.Kind) float64 {
	switch kind {
	case services.KindNetwork:
		return 1.5
	case services.KindTimeout:
		return 2.0
	default:
		return 1.0
	}
}

func (b Backoff) jitter() float64 {
	if b.rng != nil {
		return b.rng.Float64()
	}
	return rand.Float64()
}
