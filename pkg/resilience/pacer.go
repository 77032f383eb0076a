package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound requests to a steady rate with a small burst.
// A nil *Pacer never blocks.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer allows perSecond requests per second. perSecond <= 0 disables
// pacing and returns nil.
func NewPacer(perSecond float64, burst int) *Pacer {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.lim.Wait(ctx)
}
