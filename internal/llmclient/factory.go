package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/config"
)

// NewClient is a factory that creates a single LLMClient from a model config.
func NewClient(cfg config.ModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: %q. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}

// NewRouterFromConfig builds the tiered router from the generator section.
func NewRouterFromConfig(cfg config.GeneratorConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fastCfg, ok := cfg.Models[cfg.FastModel]
	if !ok {
		return nil, fmt.Errorf("generator.models has no entry for fast model %q", cfg.FastModel)
	}
	powerfulCfg, ok := cfg.Models[cfg.PowerfulModel]
	if !ok {
		return nil, fmt.Errorf("generator.models has no entry for powerful model %q", cfg.PowerfulModel)
	}

	fastClient, err := NewClient(fastCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build fast tier client: %w", err)
	}
	powerfulClient, err := NewClient(powerfulCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build powerful tier client: %w", err)
	}

	return NewRouter(logger, fastClient, powerfulClient)
}
