package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scrivener/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// wireFormatFor picks the registered provider name for a model string.
// Anthropic's Messages API is selected whenever the configured model name
// identifies a Claude model; every other model name is assumed to speak the
// OpenAI-compatible chat-completions wire format, which covers OpenAI
// itself and any self-hosted OpenAI-compatible endpoint reachable via
// ProviderConfig.BaseURL.
func wireFormatFor(model string) string {
	if strings.Contains(strings.ToLower(model), "claude") {
		return "anthropic"
	}
	return "openaicompat"
}

// NewFromConfig builds the Client used for an entire documentation run from
// the raw "llm" section of config.json plus the engine's retry parameters.
func NewFromConfig(rawLLM jsoniter.RawMessage, system *config.SystemConfig) (Client, error) {
	if len(rawLLM) == 0 {
		return nil, fmt.Errorf("missing 'llm' config")
	}

	var cfg ProviderConfig
	if err := jsoniter.Unmarshal(rawLLM, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse 'llm' config: %w", err)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("'llm.model' is required")
	}

	wireFormat := wireFormatFor(cfg.Model)
	factory, ok := GetProviderFactory(wireFormat)
	if !ok {
		return nil, fmt.Errorf("no registered provider for wire format %q", wireFormat)
	}

	atomic, err := factory.Create(cfg, system)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", wireFormat, err)
	}

	slog.Info("llm client initialized", "wire_format", wireFormat, "model", cfg.Model)

	return &RetryingClient{
		Client:     atomic,
		MaxRetries: system.MaxRetries,
		RetryDelay: time.Duration(system.RetryDelayMs) * time.Millisecond,
	}, nil
}
