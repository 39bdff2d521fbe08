package toolclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientCallSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/read_file" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var args map[string]any
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			t.Fatalf("decode args: %v", err)
		}
		if args["path"] != "/tmp/notes.md" {
			t.Errorf("unexpected args: %v", args)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":   true,
			"data": map[string]any{"content": "bonjour"},
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{Tool: "files", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := client.Call(context.Background(), "read_file", map[string]any{"path": "/tmp/notes.md"})
	if !res.OK {
		t.Fatalf("expected success, got %s: %s", res.ErrorKind, res.ErrorMessage)
	}
	if res.Action != "read_file" {
		t.Errorf("expected action echo, got %s", res.Action)
	}
	data, ok := res.Data.(map[string]any)
	if !ok || data["content"] != "bonjour" {
		t.Errorf("unexpected data: %v", res.Data)
	}
}

func TestHTTPClientStatusEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   []any{"a", "b"},
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{Tool: "search", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := client.Call(context.Background(), "search_web", map[string]any{"query": "go"})
	if !res.OK {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
}

func TestHTTPClientErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "disk on fire"})
			},
			wantKind: KindRemoteError,
			wantMsg:  "disk on fire",
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "path is required"})
			},
			wantKind: KindBadRequest,
			wantMsg:  "path is required",
		},
		{
			name: "remote failure on 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "no such file"})
			},
			wantKind: KindRemoteError,
			wantMsg:  "no such file",
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
			wantKind: KindParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client, err := NewHTTPClient(HTTPConfig{Tool: "files", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			res := client.Call(context.Background(), "read_file", map[string]any{"path": "x"})
			if res.OK {
				t.Fatal("expected failure")
			}
			if res.ErrorKind != tt.wantKind {
				t.Errorf("expected kind %s, got %s (%s)", tt.wantKind, res.ErrorKind, res.ErrorMessage)
			}
			if tt.wantMsg != "" && res.ErrorMessage != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, res.ErrorMessage)
			}
		})
	}
}

func TestHTTPClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client, err := NewHTTPClient(HTTPConfig{Tool: "files", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := client.Call(context.Background(), "read_file", map[string]any{"path": "x"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != KindTransport {
		t.Errorf("expected transport, got %s", res.ErrorKind)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		server.Close()
	}()

	client, err := NewHTTPClient(HTTPConfig{Tool: "files", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := client.Call(context.Background(), "read_file", map[string]any{"path": "x"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != KindTimeout {
		t.Errorf("expected timeout, got %s (%s)", res.ErrorKind, res.ErrorMessage)
	}
}

func TestHTTPClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "version": "1.2.0"})
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{Tool: "system", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := client.Health(context.Background())
	if !h.OK {
		t.Fatalf("expected healthy, got %v", h.Details)
	}
	if h.Details["version"] != "1.2.0" {
		t.Errorf("expected version detail, got %v", h.Details)
	}
}

func TestHTTPClientHealthDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{Tool: "system", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := client.Health(context.Background())
	if h.OK {
		t.Fatal("expected unhealthy")
	}
	if h.Details["error"] == nil {
		t.Error("expected error detail")
	}
}

func TestNewHTTPClientValidation(t *testing.T) {
	if _, err := NewHTTPClient(HTTPConfig{Tool: "", BaseURL: "http://localhost:1"}); err == nil {
		t.Error("expected error for empty tool")
	}
	if _, err := NewHTTPClient(HTTPConfig{Tool: "files", BaseURL: "not a url"}); err == nil {
		t.Error("expected error for bad url")
	}
	if _, err := NewHTTPClient(HTTPConfig{Tool: "files", BaseURL: "ftp://example.com"}); err == nil {
		t.Error("expected error for non-http scheme")
	}
}

func TestTimeoutFor(t *testing.T) {
	tests := []struct {
		tool string
		want time.Duration
	}{
		{"llm", LLMTimeout},
		{"vision", VisionTimeout},
		{"files", DefaultTimeout},
		{"rag", DefaultTimeout},
	}
	for _, tt := range tests {
		if got := TimeoutFor(tt.tool); got != tt.want {
			t.Errorf("TimeoutFor(%s) = %v, want %v", tt.tool, got, tt.want)
		}
	}
}
