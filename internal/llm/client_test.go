package llm

import (
	"context"
	"testing"

	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

func adapterWith(t *testing.T, p *fakeProvider) *ToolAdapter {
	t.Helper()
	r := NewStatic(map[models.LLMRole]Binding{
		models.RoleReasoning: {Provider: p, Model: "llama3"},
	}, Options{})
	return NewToolAdapter(r)
}

func TestAdapterGenerate(t *testing.T) {
	p := &fakeProvider{name: "local", result: &GenerateResult{Text: "il est midi"}}
	a := adapterWith(t, p)

	res := a.Call(context.Background(), "generate", map[string]any{"prompt": "quelle heure est-il"})
	if !res.OK {
		t.Fatalf("generate failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	data, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("data type %T", res.Data)
	}
	if data["text"] != "il est midi" || data["provider"] != "local" {
		t.Errorf("data = %v", data)
	}
	if p.lastReq.Prompt != "quelle heure est-il" {
		t.Errorf("provider prompt = %q", p.lastReq.Prompt)
	}
}

func TestAdapterGenerateValidation(t *testing.T) {
	a := adapterWith(t, &fakeProvider{name: "local", result: &GenerateResult{Text: "x"}})

	res := a.Call(context.Background(), "generate", map[string]any{})
	if res.OK || res.ErrorKind != toolclient.KindBadRequest {
		t.Errorf("missing prompt: ok=%v kind=%s", res.OK, res.ErrorKind)
	}

	res = a.Call(context.Background(), "generate", map[string]any{"prompt": "x", "max_tokens": "lots"})
	if res.OK || res.ErrorKind != toolclient.KindBadRequest {
		t.Errorf("mistyped arg: ok=%v kind=%s", res.OK, res.ErrorKind)
	}
}

func TestAdapterGenerateMapsProviderError(t *testing.T) {
	p := &fakeProvider{name: "local", err: &Error{Provider: "local", Reason: ReasonTimeout, Message: "too slow"}}
	a := adapterWith(t, p)

	res := a.Call(context.Background(), "generate", map[string]any{"prompt": "x"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != toolclient.KindTimeout {
		t.Errorf("kind = %s, want timeout", res.ErrorKind)
	}
}

func TestAdapterChatFoldsTranscript(t *testing.T) {
	p := &fakeProvider{name: "local", result: &GenerateResult{Text: "salut"}}
	a := adapterWith(t, p)

	res := a.Call(context.Background(), "chat", map[string]any{
		"messages": []any{
			map[string]any{"role": "system", "content": "sois bref"},
			map[string]any{"role": "user", "content": "bonjour"},
			map[string]any{"role": "assistant", "content": "bonjour, que puis-je faire"},
			map[string]any{"role": "user", "content": "raconte une blague"},
		},
	})
	if !res.OK {
		t.Fatalf("chat failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	if p.lastReq.System != "sois bref" {
		t.Errorf("system = %q, want lifted system turn", p.lastReq.System)
	}
	want := "user: bonjour\nassistant: bonjour, que puis-je faire\nuser: raconte une blague\nassistant:"
	if p.lastReq.Prompt != want {
		t.Errorf("prompt = %q, want %q", p.lastReq.Prompt, want)
	}
}

func TestAdapterChatRequiresMessages(t *testing.T) {
	a := adapterWith(t, &fakeProvider{name: "local", result: &GenerateResult{Text: "x"}})
	res := a.Call(context.Background(), "chat", map[string]any{"messages": []any{}})
	if res.OK || res.ErrorKind != toolclient.KindBadRequest {
		t.Errorf("empty messages: ok=%v kind=%s", res.OK, res.ErrorKind)
	}
}

func TestAdapterListModels(t *testing.T) {
	p := &fakeProvider{
		name:   "local",
		result: &GenerateResult{Text: "x"},
		models: []ModelInfo{{ID: "llama3", Provider: "local"}, {ID: "codellama", Provider: "local"}},
	}
	a := adapterWith(t, p)

	res := a.Call(context.Background(), "list_models", nil)
	if !res.OK {
		t.Fatalf("list_models failed: %s", res.ErrorMessage)
	}
	data := res.Data.(map[string]any)
	infos, ok := data["models"].([]ModelInfo)
	if !ok || len(infos) != 2 {
		t.Errorf("models = %v", data["models"])
	}
}

func TestAdapterUnknownAction(t *testing.T) {
	a := adapterWith(t, &fakeProvider{name: "local", result: &GenerateResult{Text: "x"}})
	res := a.Call(context.Background(), "hallucinate", nil)
	if res.OK || res.ErrorKind != toolclient.KindUnknownAction {
		t.Errorf("unknown action: ok=%v kind=%s", res.OK, res.ErrorKind)
	}
}

func TestAdapterHealth(t *testing.T) {
	a := adapterWith(t, &fakeProvider{name: "local", result: &GenerateResult{Text: "x"}})
	h := a.Health(context.Background())
	if !h.OK {
		t.Fatalf("health = %+v", h)
	}
	if h.Details["reasoning"] != "local/llama3" {
		t.Errorf("details = %v", h.Details)
	}

	empty := NewToolAdapter(NewStatic(nil, Options{}))
	if empty.Health(context.Background()).OK {
		t.Error("empty registry should be unhealthy")
	}
}
