package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible provider. Pointing BaseURL at
// a local runtime (ollama, vllm, llama.cpp) serves the same chat completions
// surface without an API key.
type OpenAIConfig struct {
	// Name overrides the provider name, default "openai".
	Name string

	// APIKey authenticates to hosted endpoints. Local runtimes ignore it.
	APIKey string

	// BaseURL overrides the endpoint, e.g. "http://localhost:11434/v1".
	BaseURL string

	// Model is the default model when a request names none.
	Model string
}

// OpenAI speaks the chat completions API of OpenAI and compatible runtimes.
type OpenAI struct {
	name   string
	client *openai.Client
	model  string
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates the provider. Hosted endpoints require an API key; a
// BaseURL override marks a local runtime where the key is optional.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAI{
		name:   cfg.Name,
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Name returns the configured provider name.
func (p *OpenAI) Name() string {
	return p.name
}

// Generate runs one chat completion, non-streaming.
func (p *OpenAI) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model == "" {
		return nil, newError(p.name, "", errors.New("model is required"))
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, p.wrapError(err, model)
	}
	if len(resp.Choices) == 0 {
		return nil, newError(p.name, model, errors.New("empty response"))
	}

	answered := resp.Model
	if answered == "" {
		answered = model
	}
	return &GenerateResult{
		Text:             resp.Choices[0].Message.Content,
		Model:            answered,
		Provider:         p.name,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAI) wrapError(err error, model string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := newError(p.name, model, err).withStatus(apiErr.HTTPStatusCode)
		if apiErr.Message != "" {
			e.Message = apiErr.Message
		}
		return e
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(p.name, model, err).withStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e := newError(p.name, model, err)
		e.Reason = ReasonTimeout
		return e
	}
	return newError(p.name, model, fmt.Errorf("chat completion: %w", err))
}
