package openaicompat

import (
	"scrivener/pkg/config"
	"scrivener/pkg/llm"
)

// Factory creates openai-compatible clients from ProviderConfig.
type Factory struct{}

func (f *Factory) Create(cfg llm.ProviderConfig, system *config.SystemConfig) (llm.Client, error) {
	return New(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens, system), nil
}

func init() {
	llm.RegisterProvider("openaicompat", &Factory{})
}
