package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleConfig configures the Google Gemini provider.
type GoogleConfig struct {
	// Name overrides the provider name, default "google".
	Name string

	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the default model when a request names none.
	Model string
}

// Google generates through the Gemini API.
type Google struct {
	name   string
	client *genai.Client
	model  string
}

var _ Provider = (*Google)(nil)

// NewGoogle creates the provider. Client construction validates credentials
// lazily; the first Generate surfaces auth problems.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.Name == "" {
		cfg.Name = "google"
	}
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Google{
		name:   cfg.Name,
		client: client,
		model:  cfg.Model,
	}, nil
}

// Name returns the configured provider name.
func (p *Google) Name() string {
	return p.name
}

// Generate runs one prompt to completion.
func (p *Google) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model == "" {
		return nil, newError(p.name, "", errors.New("model is required"))
	}

	genCfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}},
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return nil, newError(p.name, model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, newError(p.name, model, errors.New("empty response"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return nil, newError(p.name, model, errors.New("empty response"))
	}

	result := &GenerateResult{
		Text:     text.String(),
		Model:    model,
		Provider: p.name,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}
