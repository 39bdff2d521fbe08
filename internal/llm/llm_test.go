package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/yaya56vv/cortex/pkg/models"
)

type fakeProvider struct {
	name   string
	result *GenerateResult
	err    error
	models []ModelInfo

	lastReq GenerateRequest
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Generate(_ context.Context, req GenerateRequest) (*GenerateResult, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	res := *p.result
	if res.Model == "" {
		res.Model = req.Model
	}
	res.Provider = p.name
	return &res, nil
}

func (p *fakeProvider) ListModels(context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

func staticRegistry(t *testing.T, bindings map[models.LLMRole]Binding) *Registry {
	t.Helper()
	return NewStatic(bindings, Options{})
}

func TestResolveFallsBackToReasoning(t *testing.T) {
	reasoning := &fakeProvider{name: "local"}
	r := staticRegistry(t, map[models.LLMRole]Binding{
		models.RoleReasoning: {Provider: reasoning, Model: "llama3"},
	})

	for _, role := range []models.LLMRole{models.RoleCoding, models.RoleVision, "nonsense", ""} {
		p, model, err := r.Resolve(role)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", role, err)
		}
		if p != reasoning || model != "llama3" {
			t.Errorf("Resolve(%s) = %s/%s, want local/llama3", role, p.Name(), model)
		}
	}
}

func TestResolveBoundRoleWins(t *testing.T) {
	reasoning := &fakeProvider{name: "local"}
	coding := &fakeProvider{name: "hosted"}
	r := staticRegistry(t, map[models.LLMRole]Binding{
		models.RoleReasoning: {Provider: reasoning, Model: "llama3"},
		models.RoleCoding:    {Provider: coding, Model: "codellama"},
	})

	p, model, err := r.Resolve(models.RoleCoding)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p != coding || model != "codellama" {
		t.Errorf("Resolve(coding) = %s/%s", p.Name(), model)
	}
}

func TestResolveNoBindings(t *testing.T) {
	r := staticRegistry(t, nil)
	if _, _, err := r.Resolve(models.RoleReasoning); err == nil {
		t.Fatal("expected error for empty registry")
	}
}

func TestGenerateAppliesBindingModel(t *testing.T) {
	p := &fakeProvider{name: "local", result: &GenerateResult{Text: "bonjour"}}
	r := staticRegistry(t, map[models.LLMRole]Binding{
		models.RoleReasoning: {Provider: p, Model: "llama3"},
	})

	res, err := r.Generate(context.Background(), models.RoleReasoning, GenerateRequest{Prompt: "salut"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if p.lastReq.Model != "llama3" {
		t.Errorf("provider saw model %q, want binding model llama3", p.lastReq.Model)
	}
	if res.Text != "bonjour" || res.Provider != "local" {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerateExplicitModelWins(t *testing.T) {
	p := &fakeProvider{name: "local", result: &GenerateResult{Text: "ok"}}
	r := staticRegistry(t, map[models.LLMRole]Binding{
		models.RoleReasoning: {Provider: p, Model: "llama3"},
	})

	_, err := r.Generate(context.Background(), models.RoleReasoning, GenerateRequest{Prompt: "x", Model: "mistral"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if p.lastReq.Model != "mistral" {
		t.Errorf("provider saw model %q, want mistral", p.lastReq.Model)
	}
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	cause := &Error{Provider: "hosted", Reason: ReasonRateLimit, Message: "slow down"}
	p := &fakeProvider{name: "hosted", err: cause}
	r := staticRegistry(t, map[models.LLMRole]Binding{
		models.RoleReasoning: {Provider: p, Model: "gpt"},
	})

	_, err := r.Generate(context.Background(), models.RoleReasoning, GenerateRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ReasonOf(err); got != ReasonRateLimit {
		t.Errorf("reason = %s, want rate_limit", got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "undeclared provider",
			cfg: Config{
				Roles: map[models.LLMRole]RoleBinding{
					models.RoleReasoning: {Provider: "ghost"},
				},
			},
		},
		{
			name: "invalid role",
			cfg: Config{
				Roles: map[models.LLMRole]RoleBinding{
					"prophecy": {Provider: "local"},
				},
				Providers: map[string]ProviderConfig{
					"local": {Kind: "ollama", BaseURL: "http://localhost:11434", Model: "llama3"},
				},
			},
		},
		{
			name: "no model anywhere",
			cfg: Config{
				Roles: map[models.LLMRole]RoleBinding{
					models.RoleReasoning: {Provider: "local"},
				},
				Providers: map[string]ProviderConfig{
					"local": {Kind: "ollama", BaseURL: "http://localhost:11434"},
				},
			},
		},
		{
			name: "unsupported kind",
			cfg: Config{
				Providers: map[string]ProviderConfig{
					"weird": {Kind: "abacus"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected config error")
			}
		})
	}
}

func TestBindings(t *testing.T) {
	r := staticRegistry(t, map[models.LLMRole]Binding{
		models.RoleReasoning: {Provider: &fakeProvider{name: "local"}, Model: "llama3"},
		models.RoleVision:    {Provider: &fakeProvider{name: "cloud"}, Model: "gemini"},
	})
	got := r.Bindings()
	if got["reasoning"] != "local/llama3" || got["vision"] != "cloud/gemini" {
		t.Errorf("Bindings() = %v", got)
	}
}

func TestReasonRetryable(t *testing.T) {
	for _, r := range []Reason{ReasonTimeout, ReasonRateLimit, ReasonServer, ReasonTransport} {
		if !r.Retryable() {
			t.Errorf("%s should be retryable", r)
		}
	}
	for _, r := range []Reason{ReasonAuth, ReasonInvalidRequest, ReasonUnknown} {
		if r.Retryable() {
			t.Errorf("%s should not be retryable", r)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{errors.New("context deadline exceeded"), ReasonTimeout},
		{errors.New("429 Too Many Requests"), ReasonRateLimit},
		{errors.New("invalid api key"), ReasonAuth},
		{errors.New("dial tcp: connection refused"), ReasonTransport},
		{errors.New("502 Bad Gateway"), ReasonServer},
		{errors.New("something odd"), ReasonUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
