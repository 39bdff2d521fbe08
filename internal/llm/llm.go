// Package llm routes model calls by role. The registry binds each role
// (reasoning, coding, vision) to one provider and model, so callers ask for
// a capability and configuration decides which backend answers. Providers
// cover the fleet contract (an external llm tool service) as well as direct
// SDK clients for OpenAI-compatible runtimes, Anthropic, Google and AWS
// Bedrock.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// GenerateRequest is one prompt for a model.
type GenerateRequest struct {
	// Model overrides the role binding's model when set.
	Model string

	// System is the system prompt, empty for none.
	System string

	// Prompt is the user prompt.
	Prompt string

	// MaxTokens bounds the completion length. Zero selects the provider
	// default.
	MaxTokens int

	// Temperature adjusts sampling when positive.
	Temperature float64
}

// GenerateResult is a completed model call.
type GenerateResult struct {
	// Text is the generated completion.
	Text string

	// Model is the model that actually answered.
	Model string

	// Provider is the provider name the call went through.
	Provider string

	// PromptTokens and CompletionTokens report usage when the provider
	// exposes it, zero otherwise.
	PromptTokens     int
	CompletionTokens int
}

// Provider is one model backend.
type Provider interface {
	// Name identifies the provider in logs, metrics and results.
	Name() string

	// Generate runs one prompt to completion.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// RoleBinding names the provider and model serving one role.
type RoleBinding struct {
	// Provider is a key of Config.Providers.
	Provider string

	// Model overrides the provider's default model for this role.
	Model string
}

// ProviderConfig declares one model backend.
type ProviderConfig struct {
	// Kind selects the client: "toolservice", "ollama", "openai",
	// "anthropic", "google" or "bedrock".
	Kind string

	// APIKey authenticates to hosted providers.
	APIKey string

	// BaseURL overrides the provider endpoint. Required for "toolservice"
	// and "ollama".
	BaseURL string

	// Model is the default model when a role does not override it.
	Model string

	// Region selects the AWS region for "bedrock".
	Region string

	// AccessKeyID, SecretAccessKey and SessionToken are static bedrock
	// credentials. When empty the default AWS credential chain applies.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Config builds a registry from declarative role and provider tables.
type Config struct {
	// Roles maps each role to its provider and model.
	Roles map[models.LLMRole]RoleBinding

	// Providers declares the available backends by name.
	Providers map[string]ProviderConfig

	// Timeout bounds one model call. Zero applies no registry-level bound.
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Options carries the cross-cutting dependencies of a registry.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Binding pairs a constructed provider with the model it serves for a role.
type Binding struct {
	Provider Provider
	Model    string
}

// Registry resolves roles to providers. It is immutable after construction
// and safe for concurrent use.
type Registry struct {
	bindings  map[models.LLMRole]Binding
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New constructs every declared provider and binds the configured roles.
func New(cfg Config) (*Registry, error) {
	built := make(map[string]Provider, len(cfg.Providers))
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := buildProvider(name, cfg.Providers[name], cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("llm: provider %s: %w", name, err)
		}
		built[name] = p
	}

	bindings := make(map[models.LLMRole]Binding, len(cfg.Roles))
	for role, rb := range cfg.Roles {
		if !role.Valid() {
			return nil, fmt.Errorf("llm: %q is not a known role", role)
		}
		p, ok := built[rb.Provider]
		if !ok {
			return nil, fmt.Errorf("llm: role %s references undeclared provider %q", role, rb.Provider)
		}
		model := rb.Model
		if model == "" {
			model = cfg.Providers[rb.Provider].Model
		}
		if model == "" {
			return nil, fmt.Errorf("llm: role %s has no model configured", role)
		}
		bindings[role] = Binding{Provider: p, Model: model}
	}

	return NewStatic(bindings, Options{Timeout: cfg.Timeout, Logger: cfg.Logger, Metrics: cfg.Metrics}), nil
}

// NewStatic builds a registry from prebuilt bindings, skipping provider
// construction from configuration.
func NewStatic(bindings map[models.LLMRole]Binding, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		bindings: make(map[models.LLMRole]Binding, len(bindings)),
		timeout:  opts.Timeout,
		logger:   logger.With("component", "llm"),
		metrics:  opts.Metrics,
	}
	seen := map[string]bool{}
	for _, role := range []models.LLMRole{models.RoleReasoning, models.RoleCoding, models.RoleVision} {
		b, ok := bindings[role]
		if !ok {
			continue
		}
		r.bindings[role] = b
		if !seen[b.Provider.Name()] {
			seen[b.Provider.Name()] = true
			r.providers = append(r.providers, b.Provider)
		}
	}
	return r
}

func buildProvider(name string, pc ProviderConfig, timeout time.Duration) (Provider, error) {
	switch pc.Kind {
	case "toolservice":
		client, err := toolclient.NewHTTPClient(toolclient.HTTPConfig{
			Tool:    "llm",
			BaseURL: pc.BaseURL,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		return NewToolService(name, client), nil
	case "ollama", "openai":
		return NewOpenAI(OpenAIConfig{
			Name:    name,
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		})
	case "anthropic":
		return NewAnthropic(AnthropicConfig{
			Name:    name,
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		})
	case "google":
		return NewGoogle(GoogleConfig{
			Name:   name,
			APIKey: pc.APIKey,
			Model:  pc.Model,
		})
	case "bedrock":
		return NewBedrock(BedrockConfig{
			Name:            name,
			Region:          pc.Region,
			AccessKeyID:     pc.AccessKeyID,
			SecretAccessKey: pc.SecretAccessKey,
			SessionToken:    pc.SessionToken,
			Model:           pc.Model,
		})
	}
	return nil, fmt.Errorf("unsupported kind %q", pc.Kind)
}

// Resolve returns the provider and model serving a role. An invalid or
// unbound role falls back to the reasoning binding.
func (r *Registry) Resolve(role models.LLMRole) (Provider, string, error) {
	if !role.Valid() {
		role = models.RoleReasoning
	}
	b, ok := r.bindings[role]
	if !ok {
		b, ok = r.bindings[models.RoleReasoning]
	}
	if !ok {
		return nil, "", fmt.Errorf("llm: no provider bound for role %s", role)
	}
	return b.Provider, b.Model, nil
}

// Generate resolves the role and runs one prompt through its provider. The
// request's explicit model, when set, wins over the binding's.
func (r *Registry) Generate(ctx context.Context, role models.LLMRole, req GenerateRequest) (*GenerateResult, error) {
	provider, model, err := r.Resolve(role)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = model
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := provider.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordLLMRequest(provider.Name(), req.Model, "error", elapsed.Seconds(), 0, 0)
		}
		r.logger.Warn("model call failed",
			"role", role,
			"provider", provider.Name(),
			"model", req.Model,
			"reason", ReasonOf(err),
			"error", err)
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordLLMRequest(provider.Name(), res.Model, "success", elapsed.Seconds(), res.PromptTokens, res.CompletionTokens)
	}
	r.logger.Debug("model call complete",
		"role", role,
		"provider", provider.Name(),
		"model", res.Model,
		"duration_ms", elapsed.Milliseconds(),
		"prompt_tokens", res.PromptTokens,
		"completion_tokens", res.CompletionTokens)
	return res, nil
}

// Bindings returns the role → "provider/model" table for health output.
func (r *Registry) Bindings() map[string]string {
	out := make(map[string]string, len(r.bindings))
	for role, b := range r.bindings {
		out[string(role)] = b.Provider.Name() + "/" + b.Model
	}
	return out
}

// Providers returns the distinct bound providers in role order.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}
