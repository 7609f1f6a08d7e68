package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

// AnthropicGenerator generates text with the Anthropic Messages API
type AnthropicGenerator struct {
	client anthropic.Client
	config Config
}

// NewAnthropicGenerator creates an Anthropic generator. Without an API key
// the SDK falls back to ANTHROPIC_API_KEY.
func NewAnthropicGenerator(config Config) *AnthropicGenerator {
	var opts []option.RequestOption
	if config.Anthropic.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.Anthropic.APIKey))
	}
	if config.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.Anthropic.BaseURL))
	}
	// retries are handled by WithRetry
	opts = append(opts, option.WithMaxRetries(0))

	return &AnthropicGenerator{
		client: anthropic.NewClient(opts...),
		config: config,
	}
}

// Generate sends the prompt as a single user message and concatenates the
// text blocks of the reply
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, opts skilltypes.GenerateOptions) (string, error) {
	opts = resolveOptions(g.config, DefaultAnthropicModel, opts)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}

	response, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "error sending message to Anthropic")
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}
