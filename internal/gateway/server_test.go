package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yaya56vv/cortex/internal/kernel"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// fakeKernel scripts orchestration responses.
type fakeKernel struct {
	resp *models.OrchestrateResponse
	err  error
	last models.OrchestrateRequest
}

func (f *fakeKernel) Orchestrate(ctx context.Context, req models.OrchestrateRequest) (*models.OrchestrateResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// stubClient is a canned in-process tool.
type stubClient struct {
	tool    string
	healthy bool
	result  toolclient.Result
	calls   []string
}

func (c *stubClient) Tool() string { return c.tool }

func (c *stubClient) Call(ctx context.Context, action string, args map[string]any) toolclient.Result {
	c.calls = append(c.calls, action)
	res := c.result
	res.Action = action
	return res
}

func (c *stubClient) Health(ctx context.Context) toolclient.Health {
	return toolclient.Health{OK: c.healthy}
}

type fakeStream struct {
	events chan models.TimelineEvent
}

func (f *fakeStream) Subscribe(sessionID string) (<-chan models.TimelineEvent, func()) {
	return f.events, func() {}
}

func newTestServer(t *testing.T, k Orchestrator, clients ...toolclient.Client) (*Server, *httptest.Server) {
	t.Helper()
	if k == nil {
		k = &fakeKernel{resp: &models.OrchestrateResponse{Response: "ok"}}
	}
	srv, err := NewServer(Config{
		Kernel:   k,
		Registry: toolclient.NewRegistry(clients...),
		Timeline: &fakeStream{events: make(chan models.TimelineEvent, 8)},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOrchestrateEndpoint(t *testing.T) {
	fk := &fakeKernel{resp: &models.OrchestrateResponse{
		Intention:         "general",
		Confidence:        0.4,
		Response:          "bonjour",
		ExecutionModeUsed: models.ModeAuto,
	}}
	_, ts := newTestServer(t, fk)

	resp := postJSON(t, ts.URL+"/orchestrate", models.OrchestrateRequest{
		Prompt:    "Salut",
		SessionID: "s1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body models.OrchestrateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Response != "bonjour" || body.Intention != "general" {
		t.Fatalf("body = %+v", body)
	}
	if fk.last.Prompt != "Salut" || fk.last.SessionID != "s1" {
		t.Fatalf("kernel saw %+v", fk.last)
	}
}

func TestOrchestrateRejectsBadRequests(t *testing.T) {
	fk := &fakeKernel{err: kernel.ErrEmptyPrompt}
	_, ts := newTestServer(t, fk)

	resp, err := http.Post(ts.URL+"/orchestrate", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body: status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/orchestrate", map[string]any{"prompt": "x", "execution_mode": "yolo"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad mode: status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/orchestrate", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty prompt: status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthzAggregation(t *testing.T) {
	rag := &stubClient{tool: "rag", healthy: true}
	memory := &stubClient{tool: "memory", healthy: false}
	_, ts := newTestServer(t, nil, rag, memory)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body healthzBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("status = %q, want degraded (unhealthy tool and catalog gaps)", body.Status)
	}
	if !body.Tools["rag"].OK || body.Tools["memory"].OK {
		t.Fatalf("tools = %+v", body.Tools)
	}
	if len(body.Catalog.MissingClients) == 0 {
		t.Fatal("catalog mismatch not reported")
	}
}

func TestToolEndpointDispatches(t *testing.T) {
	rag := &stubClient{
		tool:    "rag",
		healthy: true,
		result:  toolclient.Success("", map[string]any{"results": []any{}}),
	}
	_, ts := newTestServer(t, nil, rag)

	resp := postJSON(t, ts.URL+"/rag/query", map[string]any{"query": "MCP", "dataset": "context_flow"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res toolclient.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.OK || res.Action != "query" {
		t.Fatalf("result = %+v", res)
	}
	if len(rag.calls) != 1 || rag.calls[0] != "query" {
		t.Fatalf("client saw %v", rag.calls)
	}
}

func TestToolEndpointUnknownAction(t *testing.T) {
	rag := &stubClient{tool: "rag", healthy: true}
	_, ts := newTestServer(t, nil, rag)

	resp := postJSON(t, ts.URL+"/rag/hallucinate", map[string]any{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var res toolclient.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.OK || res.ErrorKind != toolclient.KindUnknownAction {
		t.Fatalf("result = %+v", res)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("no X-Request-ID assigned")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "given-id")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "given-id" {
		t.Fatalf("X-Request-ID = %q, want the caller's id echoed", got)
	}
}

func TestTimelineWebsocketStreams(t *testing.T) {
	stream := &fakeStream{events: make(chan models.TimelineEvent, 1)}
	srv, err := NewServer(Config{
		Kernel:   &fakeKernel{resp: &models.OrchestrateResponse{}},
		Registry: toolclient.NewRegistry(),
		Timeline: stream,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/timeline/ws?session_id=s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stream.events <- models.TimelineEvent{
		ID:        7,
		SessionID: "s1",
		EventType: "step_start",
		Timestamp: time.Now().UTC(),
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.TimelineEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.ID != 7 || event.EventType != "step_start" {
		t.Fatalf("event = %+v", event)
	}
}

func TestHealthToolContract(t *testing.T) {
	rag := &stubClient{tool: "rag", healthy: true}
	memory := &stubClient{tool: "memory", healthy: true}
	_, ts := newTestServer(t, nil, rag, memory)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Status  string         `json:"status"`
		Details map[string]any `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q", body.Status)
	}
	if _, ok := body.Details["rag"]; !ok {
		t.Fatalf("details = %+v", body.Details)
	}
}
