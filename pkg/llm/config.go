// Package llm provides the language-model collaborator used by ai-prompt
// skills. Each provider turns one prompt into one text completion.
package llm

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Provider names
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// Default models per provider
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4.1"
	DefaultGoogleModel    = "gemini-2.5-pro"
	DefaultMaxTokens      = 4096
)

// Config selects and configures the language-model provider
type Config struct {
	Provider    string          `mapstructure:"provider"`
	Model       string          `mapstructure:"model"`
	MaxTokens   int             `mapstructure:"max_tokens"`
	Temperature *float64        `mapstructure:"temperature"`
	Retry       RetryConfig     `mapstructure:"-"`
	OpenAI      OpenAIConfig    `mapstructure:"openai"`
	Anthropic   AnthropicConfig `mapstructure:"anthropic"`
	Google      GoogleConfig    `mapstructure:"google"`
}

// OpenAIConfig holds OpenAI-compatible endpoint settings
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic settings
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GoogleConfig holds Google GenAI settings. Backend is "gemini" or "vertexai".
type GoogleConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Backend  string `mapstructure:"backend"`
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
}

// RetryConfig controls retries of transient provider failures. Delays are in
// milliseconds. BackoffType is "fixed" or "exponential".
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay"`
	MaxDelay     int    `mapstructure:"max_delay"`
	BackoffType  string `mapstructure:"backoff_type"`
}

// DefaultRetryConfig is used when no retry settings are configured
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// GetConfigFromViper reads the provider settings from the global viper
// instance. The "llm" section holds retry settings; provider credentials
// live under their own top-level keys.
func GetConfigFromViper() (Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal llm configuration")
	}
	if err := viper.UnmarshalKey("llm.retry", &config.Retry); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal llm retry configuration")
	}

	if config.Provider == "" {
		config.Provider = ProviderAnthropic
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Retry.Attempts == 0 {
		config.Retry = DefaultRetryConfig
	}
	config.applyEnvKeys()
	return config, nil
}

func (c *Config) applyEnvKeys() {
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Google.APIKey == "" {
		c.Google.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Google.APIKey == "" {
		c.Google.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
}
