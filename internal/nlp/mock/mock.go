// Package mock provides a test double for the nlp.Provider interface.
//
// Use Provider in unit tests to feed controlled completions without a live
// model backend. All fields are safe to set before calling any method;
// mutating them during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{GenerateResponse: "SELECT 1"}
//	sql, err := nlp.NewTranslator(p).ToSQL(ctx, "show one row")
package mock

import (
	"context"
	"sync"

	"github.com/heravelli/tollgate/internal/nlp"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Prompt is the prompt passed to Generate.
	Prompt string
}

// Provider is a mock implementation of nlp.Provider.
// The zero value returns an empty completion and no error.
// Set GenerateErr to inject errors.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock" when empty.
	ProviderName string

	// GenerateResponse is returned by Generate.
	GenerateResponse string

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall
}

// Name returns ProviderName, or "mock" when unset.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Generate records the call and returns GenerateResponse, GenerateErr.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Prompt: prompt})
	return p.GenerateResponse, p.GenerateErr
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
}

// Ensure Provider implements nlp.Provider at compile time.
var _ nlp.Provider = (*Provider)(nil)
