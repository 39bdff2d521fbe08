package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicMaxTokens caps a completion when the request does not say.
// The Messages API demands an explicit bound.
const anthropicMaxTokens = 4096

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	// Name overrides the provider name, default "anthropic".
	Name string

	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the default model when a request names none.
	Model string
}

// Anthropic generates through the Anthropic Messages API.
type Anthropic struct {
	name   string
	client anthropic.Client
	model  string
}

var _ Provider = (*Anthropic)(nil)

// NewAnthropic creates the provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.Name == "" {
		cfg.Name = "anthropic"
	}
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		name:   cfg.Name,
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Name returns the configured provider name.
func (p *Anthropic) Name() string {
	return p.name
}

// Generate runs one message to completion.
func (p *Anthropic) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model == "" {
		return nil, newError(p.name, "", errors.New("model is required"))
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: req.System},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err, model)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, newError(p.name, model, errors.New("empty response"))
	}

	answered := string(msg.Model)
	if answered == "" {
		answered = model
	}
	return &GenerateResult{
		Text:             text.String(),
		Model:            answered,
		Provider:         p.name,
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (p *Anthropic) wrapError(err error, model string) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return newError(p.name, model, err).withStatus(apiErr.StatusCode)
	}
	return newError(p.name, model, err)
}
