package provider

import (
	"context"
	"net/http"
	"time"
)

// MistralConfig holds Mistral client configuration
type MistralConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// MistralClient talks to the Mistral chat completions API, which is
// wire-compatible with the OpenAI one.
type MistralClient struct {
	baseURL      string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
}

// NewMistralClient creates a new Mistral client
func NewMistralClient(cfg MistralConfig) *MistralClient {
	return &MistralClient{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		defaultModel: cfg.Model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *MistralClient) Name() string { return "mistral" }

func (c *MistralClient) Available() bool { return c.apiKey != "" }

// Complete sends a chat completion request
func (c *MistralClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	return chatCompletion(ctx, c.httpClient, c.baseURL, c.apiKey, &chatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}
