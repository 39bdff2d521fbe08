package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// ToolAdapter exposes a registry as the "llm" tool, so plan steps reach
// models through the same dispatch path as any remote tool service. It serves
// generate, chat and list_models in process.
type ToolAdapter struct {
	registry *Registry
}

var _ toolclient.Client = (*ToolAdapter)(nil)

// NewToolAdapter wraps a registry as a tool client.
func NewToolAdapter(registry *Registry) *ToolAdapter {
	return &ToolAdapter{registry: registry}
}

// Tool returns the catalog tool name.
func (a *ToolAdapter) Tool() string {
	return "llm"
}

// Call dispatches one llm action.
func (a *ToolAdapter) Call(ctx context.Context, action string, args map[string]any) toolclient.Result {
	switch action {
	case "generate":
		return a.generate(ctx, args)
	case "chat":
		return a.chat(ctx, args)
	case "list_models":
		return a.listModels(ctx)
	}
	return toolclient.Failure(action, toolclient.KindUnknownAction,
		fmt.Sprintf("llm has no action %q", action))
}

// Health reports the bound roles; the adapter itself has no transport to
// probe, so a registry with at least one binding is healthy.
func (a *ToolAdapter) Health(ctx context.Context) toolclient.Health {
	bindings := a.registry.Bindings()
	if len(bindings) == 0 {
		return toolclient.Health{OK: false, Details: map[string]any{"error": "no roles bound"}}
	}
	details := make(map[string]any, len(bindings))
	for role, target := range bindings {
		details[role] = target
	}
	return toolclient.Health{OK: true, Details: details}
}

type generateArgs struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	System      string  `json:"system"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Role        string  `json:"role"`
}

func (a *ToolAdapter) generate(ctx context.Context, args map[string]any) toolclient.Result {
	var req generateArgs
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("generate", toolclient.KindBadRequest, err.Error())
	}
	if req.Prompt == "" {
		return toolclient.Failure("generate", toolclient.KindBadRequest, "prompt is required")
	}
	return a.run(ctx, "generate", models.LLMRole(req.Role), GenerateRequest{
		Model:       req.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatArgs struct {
	Messages []chatMessage `json:"messages"`
	Model    string        `json:"model"`
	System   string        `json:"system"`
	Role     string        `json:"role"`
}

// chat folds a message history into one prompt. Providers here expose a
// single-turn Generate, so the transcript is rendered with role prefixes and
// the system turns lifted into the system prompt.
func (a *ToolAdapter) chat(ctx context.Context, args map[string]any) toolclient.Result {
	var req chatArgs
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("chat", toolclient.KindBadRequest, err.Error())
	}
	if len(req.Messages) == 0 {
		return toolclient.Failure("chat", toolclient.KindBadRequest, "messages is required")
	}

	system := req.System
	var b strings.Builder
	for _, m := range req.Messages {
		if m.Role == "system" {
			if system == "" {
				system = m.Content
			}
			continue
		}
		role := m.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("assistant:")

	return a.run(ctx, "chat", models.LLMRole(req.Role), GenerateRequest{
		Model:  req.Model,
		System: system,
		Prompt: b.String(),
	})
}

func (a *ToolAdapter) run(ctx context.Context, action string, role models.LLMRole, req GenerateRequest) toolclient.Result {
	res, err := a.registry.Generate(ctx, role, req)
	if err != nil {
		return toolclient.Failure(action, ReasonOf(err).ToolKind(), err.Error())
	}
	return toolclient.Success(action, map[string]any{
		"text":              res.Text,
		"model":             res.Model,
		"provider":          res.Provider,
		"prompt_tokens":     res.PromptTokens,
		"completion_tokens": res.CompletionTokens,
	})
}

func (a *ToolAdapter) listModels(ctx context.Context) toolclient.Result {
	var infos []ModelInfo
	for _, p := range a.registry.Providers() {
		lister, ok := p.(ModelLister)
		if !ok {
			continue
		}
		found, err := lister.ListModels(ctx)
		if err != nil {
			// One unreachable provider does not hide the others.
			continue
		}
		infos = append(infos, found...)
	}
	return toolclient.Success("list_models", map[string]any{"models": infos})
}
