package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/agentrt/core/internal/middleware"
	"github.com/agentrt/core/internal/ratelimit"
	"github.com/agentrt/core/internal/storage"
	"github.com/agentrt/core/internal/toolpolicy"
)

// ProviderConfig is one entry of the provider map: credentials and
// connection details for a single LLM backend.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
	Disable bool   `json:"disable,omitempty"`
}

// Config is the root of the runtime's own configuration tree: provider
// credentials, the default LLM selection new sessions inherit, the
// default tool policy, and the execution-engine tunables (step/turn
// limits, rate-limit retry, post-turn pruning).
type Config struct {
	Schema string `json:"$schema,omitempty"`

	Username string `json:"username,omitempty"`

	// DefaultProvider/DefaultModel seed storage.LLMParams for sessions
	// that don't request an explicit override.
	DefaultProvider string `json:"default_provider,omitempty"`
	DefaultModel    string `json:"default_model,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	ToolPolicy toolpolicy.Config `json:"tool_policy,omitempty"`

	Limits middleware.LimitsConfig `json:"limits,omitempty"`
	Retry  ratelimit.RetryConfig   `json:"retry,omitempty"`
	Prune  ratelimit.PruneConfig   `json:"prune,omitempty"`

	// StoragePath overrides the session store's sqlite file location;
	// empty means Paths.StoragePath().
	StoragePath string `json:"storage_path,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
}

// Default returns the configuration a freshly installed runtime starts
// with, before any file or environment override is applied.
func Default() *Config {
	return &Config{
		DefaultProvider: "anthropic",
		DefaultModel:    "claude-sonnet-4",
		Provider:        make(map[string]ProviderConfig),
		ToolPolicy:      toolpolicy.DefaultConfig(),
		Limits:          middleware.LimitsConfig{MaxSteps: 100, MaxTurns: 50},
		Retry:           ratelimit.DefaultRetryConfig,
		Prune:           ratelimit.DefaultPruneConfig,
		LogLevel:        "info",
	}
}

// LLMParams projects the default provider/model pair into the shape
// sessionstore expects when seeding a new session's LLM configuration.
func (c *Config) LLMParams() storage.LLMParams {
	return storage.LLMParams{Provider: c.DefaultProvider, Model: c.DefaultModel}
}

// Load loads configuration from multiple sources, each overriding the
// last:
//  1. Global config (~/.config/agentrt/)
//  2. Project config (<directory>/.agentrt/)
//  3. Environment variables
func Load(directory string) (*Config, error) {
	cfg := Default()

	globalPath := GetPaths().Config
	_ = loadConfigFile(filepath.Join(globalPath, "agentrt.json"), cfg)
	_ = loadConfigFile(filepath.Join(globalPath, "agentrt.jsonc"), cfg)

	if directory != "" {
		_ = loadConfigFile(filepath.Join(directory, ".agentrt", "agentrt.json"), cfg)
		_ = loadConfigFile(filepath.Join(directory, ".agentrt", "agentrt.jsonc"), cfg)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadConfigFile loads a single config file, merging it into cfg. A
// missing file is not an error; a malformed one is.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data = stripJSONComments(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(cfg, &fileConfig)
	return nil
}

// stripJSONComments removes // and /* */ comments from JSONC.
func stripJSONComments(data []byte) []byte {
	singleLine := regexp.MustCompile(`//.*$`)
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLine.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))

	multiLine := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	data = multiLine.ReplaceAll(data, nil)

	return data
}

// mergeConfig merges source into target, scalar fields overwriting and
// map fields combining key by key.
func mergeConfig(target, source *Config) {
	if source.Username != "" {
		target.Username = source.Username
	}
	if source.DefaultProvider != "" {
		target.DefaultProvider = source.DefaultProvider
	}
	if source.DefaultModel != "" {
		target.DefaultModel = source.DefaultModel
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.StoragePath != "" {
		target.StoragePath = source.StoragePath
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.ToolPolicy.Policy != "" {
		target.ToolPolicy = source.ToolPolicy
	}
	if source.Limits.MaxSteps != 0 || source.Limits.MaxTurns != 0 || source.Limits.MaxCostUSD != 0 {
		target.Limits = source.Limits
	}
	if source.Retry.MaxAttempts != 0 {
		target.Retry = source.Retry
	}
	if source.Prune.ProtectTokens != 0 || source.Prune.MinimumTokens != 0 {
		target.Prune = source.Prune
	}
}

// applyEnvOverrides applies environment variable overrides, last in the
// load order. AGENTRT_MODEL and AGENTRT_PROVIDER override any file value;
// a per-provider API key variable only fills a key no config file set.
func applyEnvOverrides(cfg *Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"google":    "GOOGLE_API_KEY",
		"bedrock":   "AWS_ACCESS_KEY_ID",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if cfg.Provider == nil {
				cfg.Provider = make(map[string]ProviderConfig)
			}
			p := cfg.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				cfg.Provider[provider] = p
			}
		}
	}

	if model := os.Getenv("AGENTRT_MODEL"); model != "" {
		cfg.DefaultModel = model
	}
	if provider := os.Getenv("AGENTRT_PROVIDER"); provider != "" {
		cfg.DefaultProvider = provider
	}
}

// Save writes cfg to path as indented JSON, creating parent directories
// as needed.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
