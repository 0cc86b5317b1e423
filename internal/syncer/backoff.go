package syncer

import (
	"math/rand"
	"time"
)

// Backoff computes the delay applied after a failed submission before the
// pass moves on to the next record. Doubling per consecutive failure keeps a
// struggling server from being hammered; the jitter keeps a fleet of devices
// from retrying in lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// rand returns a value in [0,1). Injectable for deterministic tests.
	rand func() float64
}

func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, rand: rand.Float64}
}

// Delay returns the wait for the given consecutive-failure count:
// base * 2^failures plus up to 10% jitter, never exceeding Max.
func (b Backoff) Delay(consecutiveFailures int) time.Duration {
	if consecutiveFailures < 0 {
		consecutiveFailures = 0
	}
	d := b.Base
	for i := 0; i < consecutiveFailures; i++ {
		d *= 2
		if d >= b.Max || d <= 0 {
			d = b.Max
			break
		}
	}
	if d > b.Max {
		d = b.Max
	}
	rnd := b.rand
	if rnd == nil {
		rnd = rand.Float64
	}
	jitter := time.Duration(float64(d) * 0.1 * rnd())
	if d+jitter > b.Max {
		return b.Max
	}
	return d + jitter
}
