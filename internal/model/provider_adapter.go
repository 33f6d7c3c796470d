package model

import (
	"context"
	"fmt"

	"github.com/harunnryd/opsgate/internal/model/contract"
	anthropicProvider "github.com/harunnryd/opsgate/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/opsgate/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/opsgate/internal/model/providers/openai"
)

// ProviderAdapter wraps provider-specific implementations to satisfy model.Provider.
// Requests are pinned to the adapter's registry name so a fallback answers
// with its own model.
type ProviderAdapter struct {
	provider     interface{}
	name         string
	providerType string
	temperature  float32
}

func (a *ProviderAdapter) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	req.Model = a.name
	if req.Temperature == 0 {
		req.Temperature = a.temperature
	}

	switch p := a.provider.(type) {
	case *openaiProvider.Provider:
		return p.Generate(ctx, req)
	case *anthropicProvider.Provider:
		return p.Generate(ctx, req)
	case *geminiProvider.Provider:
		return p.Generate(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported provider type: %T", a.provider)
	}
}

func (a *ProviderAdapter) Name() string {
	return a.name
}

func (a *ProviderAdapter) Type() string {
	return a.providerType
}

func (a *ProviderAdapter) Health(ctx context.Context) error {
	return nil
}
