package backoff

import (
	"context"
	"math"
	"time"
)

type Backoff interface {
	// Backoff waits for a duration based on the number of attempts, or until
	// the context is cancelled.
	Backoff(ctx context.Context, attempts int)
}

// Exponential increases the backoff duration exponentially with each
// attempt, up to a maximum.
type Exponential struct {
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewExponential(baseBackoff, maxBackoff time.Duration) *Exponential {
	return &Exponential{
		BaseBackoff: baseBackoff,
		MaxBackoff:  maxBackoff,
	}
}

func (eb *Exponential) Backoff(ctx context.Context, attempts int) {
	if attempts == 0 {
		return
	}

	backoff := float64(eb.BaseBackoff) * math.Pow(2, float64(attempts-1))
	if backoff > float64(eb.MaxBackoff) {
		backoff = float64(eb.MaxBackoff)
	}

	select {
	case <-time.After(time.Duration(backoff)):
	case <-ctx.Done():
	}
}

var _ Backoff = (*Exponential)(nil)

// Noop does not wait at all.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (nb *Noop) Backoff(ctx context.Context, attempts int) {}

var _ Backoff = (*Noop)(nil)
