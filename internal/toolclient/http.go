package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Per-class call timeouts. LLM generation and vision analysis run longer than
// ordinary tool calls.
const (
	DefaultTimeout = 30 * time.Second
	LLMTimeout     = 120 * time.Second
	VisionTimeout  = 60 * time.Second

	healthTimeout = 5 * time.Second

	// maxResponseBytes bounds how much of a tool response is read (10MB).
	maxResponseBytes = 10 << 20
)

// TimeoutFor returns the call timeout class for a catalog tool.
func TimeoutFor(tool string) time.Duration {
	switch tool {
	case "llm":
		return LLMTimeout
	case "vision":
		return VisionTimeout
	}
	return DefaultTimeout
}

// HTTPClient reaches a tool service over HTTP: POST <base>/<tool>/<action>
// with the argument object as the JSON body, GET <base>/health for probes.
type HTTPClient struct {
	tool    string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// HTTPConfig configures an HTTP tool client.
type HTTPConfig struct {
	// Tool is the catalog tool name served at the base URL.
	Tool string

	// BaseURL is the service root, e.g. "http://localhost:8101".
	BaseURL string

	// Timeout bounds one call. Zero selects the tool's timeout class.
	Timeout time.Duration
}

// NewHTTPClient creates a client for one tool service.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Tool == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url for tool %s: %w", cfg.Tool, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url for tool %s: %s", cfg.Tool, cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = TimeoutFor(cfg.Tool)
	}

	return &HTTPClient{
		tool:    cfg.Tool,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Tool returns the catalog tool name this client serves.
func (c *HTTPClient) Tool() string {
	return c.tool
}

// Call posts one action to the service and normalizes the outcome. Connection
// failures become "transport", deadlines "timeout", HTTP 4xx "bad_request",
// HTTP 5xx "remote_error", and undecodable bodies "parse_error".
func (c *HTTPClient) Call(ctx context.Context, action string, args map[string]any) Result {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return Failure(action, KindBadRequest, fmt.Sprintf("marshal args: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.tool, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Failure(action, KindFatal, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		kind := Classify(err)
		if kind != KindTimeout {
			kind = KindTransport
		}
		return Failure(action, kind, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		kind := Classify(err)
		if kind != KindTimeout {
			kind = KindTransport
		}
		return Failure(action, kind, fmt.Sprintf("read response: %v", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return Failure(action, KindRemoteError, httpErrorMessage(resp.StatusCode, raw))
	case resp.StatusCode >= 400:
		return Failure(action, KindBadRequest, httpErrorMessage(resp.StatusCode, raw))
	}

	return decodeResult(action, raw)
}

// Health probes GET /health on the service.
func (c *HTTPClient) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{OK: false, Details: map[string]any{"error": err.Error()}}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Health{OK: false, Details: map[string]any{"error": err.Error()}}
	}
	defer resp.Body.Close()

	details := map[string]any{}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err == nil && len(raw) > 0 {
		// Details are best-effort; a non-JSON body is ignored.
		_ = json.Unmarshal(raw, &details)
	}
	if resp.StatusCode != http.StatusOK {
		details["error"] = fmt.Sprintf("health returned status %d", resp.StatusCode)
		return Health{OK: false, Details: details}
	}
	return Health{OK: true, Details: details}
}

// wireResponse is the envelope tool services answer with. Services report
// success either as {"ok": true} or {"status": "ok"|"success"}.
type wireResponse struct {
	OK     *bool           `json:"ok"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func decodeResult(action string, raw []byte) Result {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Failure(action, KindParseError, fmt.Sprintf("decode response: %v", err))
	}

	ok := wire.Error == ""
	switch {
	case wire.OK != nil:
		ok = *wire.OK
	case wire.Status != "":
		ok = wire.Status == "ok" || wire.Status == "success"
	}

	if !ok {
		msg := wire.Error
		if msg == "" {
			msg = "tool reported failure"
		}
		return Failure(action, KindRemoteError, msg)
	}

	var data any
	if len(wire.Data) > 0 {
		if err := json.Unmarshal(wire.Data, &data); err != nil {
			return Failure(action, KindParseError, fmt.Sprintf("decode data: %v", err))
		}
	}
	return Success(action, data)
}

func httpErrorMessage(status int, raw []byte) string {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err == nil && wire.Error != "" {
		return wire.Error
	}
	body := strings.TrimSpace(string(raw))
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	if body == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, body)
}
