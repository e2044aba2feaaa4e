package llm

import (
	"context"
	"fmt"

	"actorscout/config"
	"actorscout/internal/telemetry"
)

// Completer binds a provider to one routed model and satisfies the
// single-method completion contract the discovery components consume. Token
// usage and cost are recorded through telemetry on every call.
type Completer struct {
	provider  Provider
	model     string
	telemetry *telemetry.Telemetry
}

// NewCompleter creates a completer for the given routed model key.
func NewCompleter(provider Provider, model string, tele *telemetry.Telemetry) *Completer {
	return &Completer{provider: provider, model: model, telemetry: tele}
}

// Complete generates text for the prompt with the bound model.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	out, inTok, outTok, err := c.provider.GenerateWithTokens(ctx, prompt, c.model)
	if err != nil {
		return "", fmt.Errorf("completion with %s: %w", c.model, err)
	}
	if c.telemetry != nil {
		c.telemetry.RecordLLMUsage(c.model, inTok, outTok, c.provider.CalculateCost(inTok, outTok, c.model))
	}
	return out, nil
}

// RoutedCompleter resolves a routing slot to a completer, falling back to the
// routing fallback model when the slot is empty. The resolved model must be
// configured on the provider; misrouting fails here rather than on the first
// completion call.
func RoutedCompleter(provider Provider, routing config.LLMRoutingConfig, slot string, tele *telemetry.Telemetry) (*Completer, error) {
	model := slot
	if model == "" {
		model = routing.Fallback
	}
	if model == "" {
		models := provider.GetAvailableModels()
		if len(models) == 0 {
			return nil, fmt.Errorf("no models configured")
		}
		model = models[0]
	}
	if _, err := provider.GetModelInfo(model); err != nil {
		return nil, fmt.Errorf("routed model %s: %w", model, err)
	}
	return NewCompleter(provider, model, tele), nil
}
