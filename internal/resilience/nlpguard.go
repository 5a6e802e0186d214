package resilience

import (
	"context"

	"github.com/heravelli/tollgate/internal/nlp"
)

// GuardedProvider wraps an [nlp.Provider] with a [Breaker]. While the
// breaker is open, Generate returns [ErrOpen] without contacting the
// backend, so a chat session reports the failure instantly instead of
// hanging on every translation request.
type GuardedProvider struct {
	inner   nlp.Provider
	breaker *Breaker
}

// Ensure GuardedProvider stays a drop-in replacement for the backend.
var _ nlp.Provider = (*GuardedProvider)(nil)

// GuardProvider wraps p with a breaker named after the provider.
func GuardProvider(p nlp.Provider, opts ...BreakerOption) *GuardedProvider {
	return &GuardedProvider{
		inner:   p,
		breaker: NewBreaker("nlp/"+p.Name(), opts...),
	}
}

// Name returns the wrapped provider's name.
func (g *GuardedProvider) Name() string { return g.inner.Name() }

// Generate forwards to the wrapped provider through the breaker.
func (g *GuardedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.breaker.Do(func() error {
		var innerErr error
		out, innerErr = g.inner.Generate(ctx, prompt)
		return innerErr
	})
	return out, err
}

// State exposes the breaker state for health reporting.
func (g *GuardedProvider) State() State { return g.breaker.State() }
