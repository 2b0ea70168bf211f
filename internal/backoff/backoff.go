// Package backoff computes retry delays for watch loops and storage retries.
package backoff

import (
	rand "math/rand/v2"
	"time"
)

const (
	// DefaultBase is the first delay after a failure.
	DefaultBase = 100 * time.Millisecond

	// DefaultMultiplier is the growth factor between consecutive delays.
	DefaultMultiplier = 1.6

	// DefaultCap bounds any computed delay.
	DefaultCap = 5 * time.Second
)

// Jitter implements decorrelated jitter backoff ("Full Jitter" variant) with a cap.
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
//
// Given previous delay (prev), computes next delay as:
//
//	next = min(cap, base + rand(prev*multiplier - base))
//
// Behavior:
//   - If prev <= 0, start from base
//   - Multiplier < 1.0 falls back to 1.0 (no growth)
//   - Cap < base returns cap
//
// Parameters:
//   - prev: Previous delay, zero for the first attempt
//   - base: Minimum delay (defaults to 50ms when <= 0)
//   - mult: Growth factor
//   - capDur: Upper bound, zero disables the cap
//   - rng: Random source, nil uses the package-level PRNG
//
// Returns:
//   - time.Duration: The next delay
func Jitter(prev, base time.Duration, mult float64, capDur time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if mult < 1.0 {
		mult = 1.0
	}
	if capDur > 0 && capDur < base {
		return capDur
	}

	if prev <= 0 {
		return base
	}

	spread := time.Duration(float64(prev)*mult) - base
	if spread <= 0 {
		spread = base
	}

	var jitter int64
	if rng != nil {
		jitter = rng.Int64N(int64(spread))
	} else {
		jitter = rand.Int64N(int64(spread)) //nolint:gosec // non-crypto backoff jitter
	}

	next := base + time.Duration(jitter)
	if capDur > 0 && next > capDur {
		return capDur
	}

	return next
}

// NewRNG returns a deterministic RNG only when a non-zero seed is provided.
// When seed == 0 it returns nil so callers use the package-level PRNG instead.
//
//nolint:gosec
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)
	s2 := s1 ^ 0x9e3779b97f4a7c15

	return rand.New(rand.NewPCG(s1, s2))
}

// Backoff tracks the previous delay between consecutive failures.
//
// A Backoff is not safe for concurrent use; each retry loop owns its own.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration

	rng  *rand.Rand
	prev time.Duration
}

// New creates a Backoff with default parameters.
//
// Parameters:
//   - seed: Deterministic seed for tests, zero for the package-level PRNG
//
// Returns:
//   - *Backoff: A reset backoff
func New(seed int64) *Backoff {
	return &Backoff{
		Base:       DefaultBase,
		Multiplier: DefaultMultiplier,
		Cap:        DefaultCap,
		rng:        NewRNG(seed),
	}
}

// Next returns the delay to wait before the next attempt and advances the state.
func (b *Backoff) Next() time.Duration {
	b.prev = Jitter(b.prev, b.Base, b.Multiplier, b.Cap, b.rng)
	return b.prev
}

// Reset forgets previous failures so the next delay starts from Base again.
func (b *Backoff) Reset() {
	b.prev = 0
}
