package llm

import "scrivener/pkg/config"

// ProviderConfig is the parsed form of the "llm" section of config.json.
// One documentation run talks to exactly one provider and model.
type ProviderConfig struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ProviderFactory builds the atomic Client for one wire format. Each wire
// format package registers itself in init(), mirroring the teacher's
// provider-registration pattern.
type ProviderFactory interface {
	Create(cfg ProviderConfig, system *config.SystemConfig) (Client, error)
}

var providerRegistry = make(map[string]ProviderFactory)

// RegisterProvider adds a ProviderFactory under name. Called from each wire
// format package's init().
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// GetProviderFactory looks up a previously registered factory.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := providerRegistry[name]
	return f, ok
}
