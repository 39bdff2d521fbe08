package sessions

import (
	"context"
	"testing"

	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

func TestClientAddAndGetMessages(t *testing.T) {
	c := NewClient(newTestStore(t))
	ctx := context.Background()

	res := c.Call(ctx, "add_message", map[string]any{
		"session_id": "fil",
		"role":       "user",
		"content":    "bonjour",
		"metadata":   map[string]any{"source": "cli"},
	})
	if !res.OK {
		t.Fatalf("add_message failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	data := res.Data.(map[string]any)
	if data["session_id"] != "fil" || data["added"] != true {
		t.Errorf("add_message payload = %+v", data)
	}

	res = c.Call(ctx, "get_messages", map[string]any{"session_id": "fil"})
	if !res.OK {
		t.Fatalf("get_messages failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	data = res.Data.(map[string]any)
	if data["count"] != 1 {
		t.Fatalf("count = %v, want 1", data["count"])
	}
	msgs := data["messages"].([]models.SessionMessage)
	if msgs[0].Content != "bonjour" || msgs[0].Metadata["source"] != "cli" {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestClientArgumentValidation(t *testing.T) {
	c := NewClient(newTestStore(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		action string
		args   map[string]any
	}{
		{"add_message missing session", "add_message", map[string]any{"role": "user", "content": "x"}},
		{"add_message missing content", "add_message", map[string]any{"session_id": "fil", "role": "user"}},
		{"add_message bad role", "add_message", map[string]any{"session_id": "fil", "role": "robot", "content": "x"}},
		{"add_message wrong type", "add_message", map[string]any{"session_id": 42, "role": "user", "content": "x"}},
		{"get_messages missing session", "get_messages", map[string]any{}},
		{"get_context missing session", "get_context", nil},
		{"search missing query", "search", map[string]any{"session_id": "fil"}},
		{"clear_session missing session", "clear_session", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Call(ctx, tt.action, tt.args)
			if res.OK {
				t.Fatalf("%s should fail", tt.action)
			}
			if res.ErrorKind != toolclient.KindBadRequest {
				t.Errorf("kind = %s, want %s", res.ErrorKind, toolclient.KindBadRequest)
			}
		})
	}
}

func TestClientGetContext(t *testing.T) {
	c := NewClient(newTestStore(t))
	ctx := context.Background()

	for _, m := range []map[string]any{
		{"session_id": "fil", "role": "user", "content": "Bonjour"},
		{"session_id": "fil", "role": "assistant", "content": "Salut"},
	} {
		if res := c.Call(ctx, "add_message", m); !res.OK {
			t.Fatalf("add_message failed: %s", res.ErrorMessage)
		}
	}

	res := c.Call(ctx, "get_context", map[string]any{"session_id": "fil"})
	if !res.OK {
		t.Fatalf("get_context failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	data := res.Data.(map[string]any)
	want := "[user] Bonjour\n[assistant] Salut\n"
	if data["context"] != want {
		t.Errorf("context = %q, want %q", data["context"], want)
	}
}

func TestClientSearch(t *testing.T) {
	c := NewClient(newTestStore(t))
	ctx := context.Background()

	if res := c.Call(ctx, "add_message", map[string]any{
		"session_id": "fil", "role": "user", "content": "le chat dort",
	}); !res.OK {
		t.Fatalf("add_message failed: %s", res.ErrorMessage)
	}

	res := c.Call(ctx, "search", map[string]any{"query": "chat"})
	if !res.OK {
		t.Fatalf("search failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	data := res.Data.(map[string]any)
	if data["count"] != 1 {
		t.Fatalf("count = %v, want 1", data["count"])
	}
	results := data["results"].([]models.MemorySearchResult)
	if results[0].Message.Content != "le chat dort" {
		t.Errorf("result = %+v", results[0])
	}
}

func TestClientClearAndList(t *testing.T) {
	c := NewClient(newTestStore(t))
	ctx := context.Background()

	for _, id := range []string{"fil", "test_brouillon"} {
		if res := c.Call(ctx, "add_message", map[string]any{
			"session_id": id, "role": "user", "content": "bonjour",
		}); !res.OK {
			t.Fatalf("add_message %s failed: %s", id, res.ErrorMessage)
		}
	}

	res := c.Call(ctx, "list_sessions", nil)
	if !res.OK {
		t.Fatalf("list_sessions failed: %s", res.ErrorMessage)
	}
	if data := res.Data.(map[string]any); data["count"] != 2 {
		t.Fatalf("count = %v, want 2", data["count"])
	}

	res = c.Call(ctx, "list_sessions", map[string]any{"category": "tests"})
	if !res.OK {
		t.Fatalf("list_sessions tests failed: %s", res.ErrorMessage)
	}
	data := res.Data.(map[string]any)
	if data["count"] != 1 {
		t.Fatalf("tests count = %v, want 1", data["count"])
	}
	infos := data["sessions"].([]models.SessionInfo)
	if infos[0].SessionID != "test_brouillon" {
		t.Errorf("tests listing = %+v", infos)
	}

	res = c.Call(ctx, "clear_session", map[string]any{"session_id": "fil"})
	if !res.OK || res.Data.(map[string]any)["cleared"] != true {
		t.Fatalf("clear_session = %+v", res)
	}
	res = c.Call(ctx, "clear_session", map[string]any{"session_id": "fil"})
	if !res.OK || res.Data.(map[string]any)["cleared"] != false {
		t.Fatalf("second clear_session = %+v", res)
	}
}

func TestClientUnknownAction(t *testing.T) {
	c := NewClient(newTestStore(t))
	res := c.Call(context.Background(), "hypnotize", nil)
	if res.OK {
		t.Fatal("unknown action should fail")
	}
	if res.ErrorKind != toolclient.KindUnknownAction {
		t.Errorf("kind = %s, want %s", res.ErrorKind, toolclient.KindUnknownAction)
	}
}

func TestClientHealth(t *testing.T) {
	c := NewClient(newTestStore(t))
	ctx := context.Background()

	if res := c.Call(ctx, "add_message", map[string]any{
		"session_id": "fil", "role": "user", "content": "bonjour",
	}); !res.OK {
		t.Fatalf("add_message failed: %s", res.ErrorMessage)
	}

	h := c.Health(ctx)
	if !h.OK {
		t.Fatalf("health = %+v, want OK", h)
	}
	if h.Details["active_sessions"] != 1 {
		t.Errorf("active_sessions = %v, want 1", h.Details["active_sessions"])
	}
}
