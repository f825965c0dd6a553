package resilience

import (
	"context"
)

// publisher matches pipeline.Publisher without importing it.
type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// GuardedPublisher fails fast with ErrCircuitOpen while the wrapped
// publisher keeps failing.
type GuardedPublisher struct {
	next    publisher
	breaker *CircuitBreaker
}

// NewGuardedPublisher wraps next with breaker.
func NewGuardedPublisher(next publisher, breaker *CircuitBreaker) *GuardedPublisher {
	return &GuardedPublisher{next: next, breaker: breaker}
}

// Publish forwards to the wrapped publisher through the breaker.
func (g *GuardedPublisher) Publish(ctx context.Context, channel string, payload any) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Publish(ctx, channel, payload)
	})
}

// Breaker returns the breaker guarding the publisher.
func (g *GuardedPublisher) Breaker() *CircuitBreaker {
	return g.breaker
}
