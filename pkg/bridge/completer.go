package bridge

import (
	"context"
	"sync/atomic"

	"github.com/bitop-dev/relay/pkg/ai"
)

// Completer turns a conversation into the model's next reply.
type Completer interface {
	Complete(ctx context.Context, msgs []ai.Message, preamble string) (string, error)
}

// ModelParams are the per-call model settings. They can be swapped at runtime.
type ModelParams struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// ProviderCompleter adapts an ai.Provider to Completer.
type ProviderCompleter struct {
	provider ai.Provider
	apiKey   string
	params   atomic.Pointer[ModelParams]
}

// NewProviderCompleter returns a Completer that calls p with params.
func NewProviderCompleter(p ai.Provider, apiKey string, params ModelParams) *ProviderCompleter {
	c := &ProviderCompleter{provider: p, apiKey: apiKey}
	c.SetParams(params)
	return c
}

// SetParams replaces the model settings used by later calls.
func (c *ProviderCompleter) SetParams(p ModelParams) {
	c.params.Store(&p)
}

// Params returns the current model settings.
func (c *ProviderCompleter) Params() ModelParams {
	return *c.params.Load()
}

func (c *ProviderCompleter) Complete(ctx context.Context, msgs []ai.Message, preamble string) (string, error) {
	p := c.params.Load()
	return ai.Complete(ctx, c.provider, p.Model, ai.Context{
		SystemPrompt: preamble,
		Messages:     msgs,
	}, ai.StreamOptions{
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		APIKey:      c.apiKey,
	})
}
