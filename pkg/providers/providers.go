package providers

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"google.golang.org/genai"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/"

// Client completes a single prompt.
type Client interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

type OpenAIClient struct {
	client *openai.Client
}

type GeminiClient struct {
	client *genai.Client
}

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// New returns the client for the named provider ("openai" or "gemini").
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch strings.ToLower(name) {
	case "", "openai":
		return OpenAI(opts...), nil
	case "gemini":
		return Gemini(ctx, opts...)
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

// OpenAI builds a client for any OpenAI compatible endpoint. Options fall back
// to OPENAI_API_BASE_URL and OPENAI_API_KEY.
func OpenAI(opts ...ProviderOption) *OpenAIClient {
	params := &ProviderParams{}
	for _, opt := range opts {
		opt(params)
	}

	if params.BaseURL == "" {
		params.BaseURL = os.Getenv("OPENAI_API_BASE_URL")
		if params.BaseURL == "" {
			params.BaseURL = defaultOpenAIBaseURL
		}
	}
	if params.APIKey == "" {
		params.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	reqOpts := []option.RequestOption{option.WithBaseURL(params.BaseURL)}
	if params.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(params.APIKey))
	}
	log.Println("Using Base URL", params.BaseURL)
	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
	}
}

func Gemini(ctx context.Context, opts ...ProviderOption) (*GeminiClient, error) {
	params := &ProviderParams{}
	for _, opt := range opts {
		opt(params)
	}
	apiKey := params.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %v", err)
	}
	return &GeminiClient{
		client: client,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	chatCompletion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model: openai.F(model),
	})
	if err != nil {
		return "", err
	}
	if len(chatCompletion.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", model)
	}
	return chatCompletion.Choices[0].Message.Content, nil
}

func (c *GeminiClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	parts := []*genai.Part{
		{Text: prompt},
	}
	result, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{{Parts: parts}}, nil)
	if err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("model %s returned no candidates", model)
	}
	var b strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}
