package llm

import (
	"context"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAIGenerator generates text with the OpenAI chat completions API or any
// compatible endpoint
type OpenAIGenerator struct {
	client *openai.Client
	config Config
}

// NewOpenAIGenerator creates an OpenAI generator
func NewOpenAIGenerator(config Config) (*OpenAIGenerator, error) {
	if config.OpenAI.APIKey == "" && config.OpenAI.BaseURL == "" {
		return nil, errors.New("openai api key is not set")
	}
	clientConfig := openai.DefaultConfig(config.OpenAI.APIKey)
	if config.OpenAI.BaseURL != "" {
		clientConfig.BaseURL = config.OpenAI.BaseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Generate sends the prompt as a single user message
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts skilltypes.GenerateOptions) (string, error) {
	opts = resolveOptions(g.config, DefaultOpenAIModel, opts)

	var messages []openai.ChatCompletionMessage
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	request := openai.ChatCompletionRequest{
		Model:     opts.Model,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature != nil {
		request.Temperature = float32(*opts.Temperature)
	}

	response, err := g.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", errors.Wrap(err, "error sending message to OpenAI")
	}
	if len(response.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}
