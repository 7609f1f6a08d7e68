package llm

import (
	"context"
	"testing"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyGenerator struct {
	failures []error
	calls    int
}

func (f *flakyGenerator) Generate(_ context.Context, prompt string, _ skilltypes.GenerateOptions) (string, error) {
	f.calls++
	if f.calls <= len(f.failures) {
		return "", f.failures[f.calls-1]
	}
	return "echo: " + prompt, nil
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{Attempts: attempts, InitialDelay: 1, MaxDelay: 2, BackoffType: "fixed"}
}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	gen := &flakyGenerator{failures: []error{
		errors.New("503 service unavailable"),
		errors.New("rate limit exceeded"),
	}}

	text, err := WithRetry(gen, fastRetry(3)).Generate(context.Background(), "hi", skilltypes.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", text)
	assert.Equal(t, 3, gen.calls)
}

func TestWithRetryStopsOnPermanentErrors(t *testing.T) {
	gen := &flakyGenerator{failures: []error{errors.New("invalid api key")}}

	_, err := WithRetry(gen, fastRetry(3)).Generate(context.Background(), "hi", skilltypes.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, 1, gen.calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	gen := &flakyGenerator{failures: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}

	_, err := WithRetry(gen, fastRetry(2)).Generate(context.Background(), "hi", skilltypes.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(errors.Wrap(context.DeadlineExceeded, "call")))
	assert.True(t, isRetryableError(errors.New("429 Too Many Requests")))
	assert.True(t, isRetryableError(errors.New("Overloaded")))
	assert.False(t, isRetryableError(errors.New("bad request: prompt too long")))
}

func TestGetConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Setenv("OPENAI_API_KEY", "env-key")

	viper.Set("provider", "openai")
	viper.Set("model", "gpt-test")
	viper.Set("llm.retry.attempts", 5)
	viper.Set("llm.retry.backoff_type", "fixed")

	config, err := GetConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, config.Provider)
	assert.Equal(t, "gpt-test", config.Model)
	assert.Equal(t, DefaultMaxTokens, config.MaxTokens)
	assert.Equal(t, 5, config.Retry.Attempts)
	assert.Equal(t, "fixed", config.Retry.BackoffType)
	assert.Equal(t, "env-key", config.OpenAI.APIKey)
}

func TestGetConfigFromViperDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	config, err := GetConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, config.Provider)
	assert.Equal(t, DefaultRetryConfig, config.Retry)
}

func TestNewGeneratorUnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), Config{Provider: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestNewGeneratorWrapsRetry(t *testing.T) {
	gen, err := NewGenerator(context.Background(), Config{
		Provider: ProviderOpenAI,
		OpenAI:   OpenAIConfig{APIKey: "k"},
		Retry:    fastRetry(3),
	})
	require.NoError(t, err)
	_, ok := gen.(*retryingGenerator)
	assert.True(t, ok)
}

func TestResolveOptions(t *testing.T) {
	temp := 0.2
	opts := resolveOptions(Config{Model: "configured", MaxTokens: 100, Temperature: &temp}, "fallback", skilltypes.GenerateOptions{})
	assert.Equal(t, "configured", opts.Model)
	assert.Equal(t, 100, opts.MaxTokens)
	assert.Equal(t, &temp, opts.Temperature)

	opts = resolveOptions(Config{}, "fallback", skilltypes.GenerateOptions{Model: "explicit"})
	assert.Equal(t, "explicit", opts.Model)
	assert.Equal(t, DefaultMaxTokens, opts.MaxTokens)
}

func TestLazyGeneratorReportsConstructionError(t *testing.T) {
	gen := NewLazyGenerator(Config{Provider: "carrier-pigeon"})

	_, err := gen.Generate(context.Background(), "hello", skilltypes.GenerateOptions{})
	assert.ErrorContains(t, err, "unsupported provider")

	_, err = gen.Generate(context.Background(), "again", skilltypes.GenerateOptions{})
	assert.ErrorContains(t, err, "unsupported provider", "construction is attempted once")
}
