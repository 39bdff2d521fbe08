package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/yaya56vv/cortex/internal/toolclient"
)

// ToolService generates through an external llm tool service speaking the
// fleet contract: POST <base>/llm/generate with the prompt as arguments.
// It lets a deployment delegate model access to a separate service instead
// of holding SDK credentials in-process.
type ToolService struct {
	name   string
	client toolclient.Client
}

var _ Provider = (*ToolService)(nil)

// NewToolService wraps a tool client as a model provider.
func NewToolService(name string, client toolclient.Client) *ToolService {
	if name == "" {
		name = "toolservice"
	}
	return &ToolService{name: name, client: client}
}

// Name returns the configured provider name.
func (p *ToolService) Name() string {
	return p.name
}

// generatePayload is the data object a generate action answers with.
type generatePayload struct {
	Text             string `json:"text"`
	Response         string `json:"response"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Generate posts one prompt to the service's generate action.
func (p *ToolService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	args := map[string]any{"prompt": req.Prompt}
	if req.Model != "" {
		args["model"] = req.Model
	}
	if req.System != "" {
		args["system"] = req.System
	}
	if req.MaxTokens > 0 {
		args["max_tokens"] = req.MaxTokens
	}

	res := p.client.Call(ctx, "generate", args)
	if !res.OK {
		e := &Error{
			Provider: p.name,
			Model:    req.Model,
			Reason:   reasonFromKind(res.ErrorKind),
			Message:  res.ErrorMessage,
			Cause:    errors.New(res.ErrorMessage),
		}
		return nil, e
	}

	var payload generatePayload
	if err := toolclient.DecodeArgs(resultData(res), &payload); err != nil {
		return nil, newError(p.name, req.Model, fmt.Errorf("decode generate result: %w", err))
	}
	text := payload.Text
	if text == "" {
		text = payload.Response
	}
	if text == "" {
		return nil, newError(p.name, req.Model, errors.New("service returned an empty completion"))
	}
	model := payload.Model
	if model == "" {
		model = req.Model
	}
	return &GenerateResult{
		Text:             text,
		Model:            model,
		Provider:         p.name,
		PromptTokens:     payload.PromptTokens,
		CompletionTokens: payload.CompletionTokens,
	}, nil
}

// ListModels asks the service's list_models action for its catalog.
func (p *ToolService) ListModels(ctx context.Context) ([]ModelInfo, error) {
	res := p.client.Call(ctx, "list_models", nil)
	if !res.OK {
		return nil, &Error{
			Provider: p.name,
			Reason:   reasonFromKind(res.ErrorKind),
			Message:  res.ErrorMessage,
			Cause:    errors.New(res.ErrorMessage),
		}
	}
	var payload struct {
		Models []ModelInfo `json:"models"`
	}
	if err := toolclient.DecodeArgs(resultData(res), &payload); err != nil {
		return nil, newError(p.name, "", fmt.Errorf("decode list_models result: %w", err))
	}
	for i := range payload.Models {
		if payload.Models[i].Provider == "" {
			payload.Models[i].Provider = p.name
		}
	}
	return payload.Models, nil
}

// resultData normalizes a tool result's data to an argument map.
func resultData(res toolclient.Result) map[string]any {
	if m, ok := res.Data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// reasonFromKind maps a tool error kind back onto the provider taxonomy, the
// inverse of Reason.ToolKind for kinds a remote service can produce.
func reasonFromKind(kind toolclient.ErrorKind) Reason {
	switch kind {
	case toolclient.KindTimeout:
		return ReasonTimeout
	case toolclient.KindTransport:
		return ReasonTransport
	case toolclient.KindRemoteError:
		return ReasonServer
	case toolclient.KindBadRequest:
		return ReasonInvalidRequest
	}
	return ReasonUnknown
}
