package llm

import (
	"context"
	"os"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// GoogleGenerator generates text with the Google GenAI API (Gemini or
// Vertex AI)
type GoogleGenerator struct {
	client *genai.Client
	config Config
}

// NewGoogleGenerator creates a Google GenAI generator
func NewGoogleGenerator(ctx context.Context, config Config) (*GoogleGenerator, error) {
	clientConfig := &genai.ClientConfig{}
	switch detectBackend(config.Google) {
	case "vertexai":
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = config.Google.Project
		clientConfig.Location = config.Google.Location
	default:
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = config.Google.APIKey
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}
	return &GoogleGenerator{client: client, config: config}, nil
}

func detectBackend(config GoogleConfig) string {
	if config.Backend != "" {
		return config.Backend
	}
	if config.Project != "" || os.Getenv("GOOGLE_GENAI_USE_VERTEXAI") == "true" {
		return "vertexai"
	}
	return "gemini"
}

// Generate sends the prompt as a single user turn
func (g *GoogleGenerator) Generate(ctx context.Context, prompt string, opts skilltypes.GenerateOptions) (string, error) {
	opts = resolveOptions(g.config, DefaultGoogleModel, opts)

	contentConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if opts.System != "" {
		contentConfig.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	if opts.Temperature != nil {
		contentConfig.Temperature = genai.Ptr(float32(*opts.Temperature))
	}

	response, err := g.client.Models.GenerateContent(ctx, opts.Model, genai.Text(prompt), contentConfig)
	if err != nil {
		return "", errors.Wrap(err, "error sending message to Google GenAI")
	}
	return response.Text(), nil
}
