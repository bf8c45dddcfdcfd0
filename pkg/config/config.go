package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// Config maps directly to config.json: the single LLM connection this
// process drives, plus the persona used for chat. There is exactly one
// configured provider per process (spec §6), unlike the teacher's
// per-channel provider groups.
type Config struct {
	LLM          jsoniter.RawMessage `json:"llm"`
	SystemPrompt string              `json:"system_prompt,omitempty"`
}

// DeepCopy creates an independent copy safe to hand to a concurrent reader.
func (c *Config) DeepCopy() *Config {
	newCfg := *c
	if c.LLM != nil {
		newCfg.LLM = append(jsoniter.RawMessage(nil), c.LLM...)
	}
	return &newCfg
}

// Validate ensures the configuration contains the mandatory LLM section.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	return nil
}

// SystemConfig carries engine-level technical parameters, normally stored
// in system.json alongside config.json.
type SystemConfig struct {
	// MaxRetries bounds retry attempts on transient LLM errors.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the base delay between retries, scaled by attempt number.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs is the hard per-call cutoff (spec §5 default 120000).
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// SchedulerConcurrency bounds in-flight node tasks per depth layer
	// (spec §4.7 default 4-8).
	SchedulerConcurrency int `json:"scheduler_concurrency"`
	// InternalChannelBuffer is loaded from system.json but not read by any
	// component: progress-bus subscriptions and stream chunk channels use
	// fixed buffer sizes.
	InternalChannelBuffer int `json:"internal_channel_buffer"`
	// ReplayHistoryLimit bounds how many terminal per-node events the
	// Progress Bus retains per task for late-subscriber replay.
	ReplayHistoryLimit int `json:"replay_history_limit"`
	// LogLevel: "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
	// DebugChunks enables saving every raw LLM response chunk under debug/.
	DebugChunks bool `json:"debug_chunks"`
	// ConfigReloadDebounceMs bounds how long the config file watcher waits
	// after the last write event before signaling a reload.
	ConfigReloadDebounceMs int `json:"config_reload_debounce_ms"`
	// RecognizedExtensions lists source extensions the Tree Walker turns
	// into file tasks (spec §6); anything else is counted but skipped.
	RecognizedExtensions []string `json:"recognized_extensions"`
	// IgnoreNames lists directory/file basenames the Tree Walker always
	// excludes, in addition to hidden entries.
	IgnoreNames []string `json:"ignore_names"`
}

// DeepCopy creates a full copy of SystemConfig.
func (s *SystemConfig) DeepCopy() *SystemConfig {
	newSys := *s
	newSys.RecognizedExtensions = append([]string(nil), s.RecognizedExtensions...)
	newSys.IgnoreNames = append([]string(nil), s.IgnoreNames...)
	return &newSys
}

// DefaultSystemConfig returns hardcoded safe defaults matching spec §5/§6.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:             3,
		RetryDelayMs:           500,
		LLMTimeoutMs:           120000,
		SchedulerConcurrency:   6,
		InternalChannelBuffer:  100,
		ReplayHistoryLimit:     2000,
		LogLevel:               "info",
		ConfigReloadDebounceMs: 500,
		RecognizedExtensions: []string{
			"py", "js", "ts", "jsx", "tsx", "java", "go", "rs", "c", "cpp",
			"h", "hpp", "cs", "rb", "php", "swift", "kt", "scala", "vue", "svelte",
		},
		IgnoreNames: []string{
			"node_modules", ".git", ".docs", "dist", "build", "target",
			"vendor", "__pycache__", ".venv",
		},
	}
}

// Load reads config.json and system.json (the latter optional, falling
// back to defaults) from the process's working directory.
func Load() (*Config, *SystemConfig, error) {
	appPath := "config.json"
	if _, err := os.Stat(appPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}

	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	sysCfg := LoadSystemConfig("system.json")

	return &cfg, sysCfg, nil
}

// LoadSystemConfig attempts to load system.json, returning defaults
// (optionally overlaid with whatever decoded successfully) if it's absent.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return cfg
	}

	return cfg
}
