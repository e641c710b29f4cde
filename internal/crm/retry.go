package crm

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy governs the customer fetch. Exhausting it is not an error: the fetch yields no customers.
type RetryPolicy struct {
	// MaxAttempts counts every attempt, the first one included.
	MaxAttempts     int
	InitialInterval time.Duration
	// MaxInterval caps every single gap between attempts, jitter included.
	MaxInterval time.Duration
	Multiplier  float64
	// Jitter is the randomization factor applied to each gap, in [0,1].
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     10,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
		Jitter:          0.5,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.InitialInterval > p.MaxInterval {
		p.InitialInterval = p.MaxInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

func (p RetryPolicy) backOff() backoff.BackOff {
	return &cappedBackOff{
		next: &backoff.ExponentialBackOff{
			InitialInterval:     p.InitialInterval,
			RandomizationFactor: p.Jitter,
			Multiplier:          p.Multiplier,
			MaxInterval:         p.MaxInterval,
		},
		max: p.MaxInterval,
	}
}

// cappedBackOff clamps the jittered interval, which can otherwise overshoot MaxInterval by the jitter factor.
type cappedBackOff struct {
	next backoff.BackOff
	max  time.Duration
}

func (b *cappedBackOff) NextBackOff() time.Duration {
	d := b.next.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if d > b.max {
		return b.max
	}
	return d
}

func (b *cappedBackOff) Reset() { b.next.Reset() }
