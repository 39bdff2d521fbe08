package sessions

import (
	"context"

	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// Client exposes a Store as the "memory" tool so executor steps run
// in-process. Configuration may still point the registry at an external
// memory service instead; the contract is identical.
type Client struct {
	store Store
}

var _ toolclient.Client = (*Client)(nil)

// NewClient wraps a session store in the tool contract.
func NewClient(store Store) *Client {
	return &Client{store: store}
}

// Tool returns the catalog tool name.
func (c *Client) Tool() string {
	return "memory"
}

// Call dispatches one catalog action.
func (c *Client) Call(ctx context.Context, action string, args map[string]any) toolclient.Result {
	switch action {
	case "add_message":
		return c.addMessage(ctx, args)
	case "get_messages":
		return c.getMessages(ctx, args)
	case "get_context":
		return c.getContext(ctx, args)
	case "search":
		return c.search(ctx, args)
	case "clear_session":
		return c.clearSession(ctx, args)
	case "list_sessions":
		return c.listSessions(ctx, args)
	default:
		return toolclient.Failure(action, toolclient.KindUnknownAction, "memory has no action "+action)
	}
}

// Health probes the store with a listing.
func (c *Client) Health(ctx context.Context) toolclient.Health {
	infos, err := c.store.List(ctx, bucketActive)
	if err != nil {
		return toolclient.Health{OK: false, Details: map[string]any{"error": err.Error()}}
	}
	return toolclient.Health{OK: true, Details: map[string]any{"active_sessions": len(infos)}}
}

func validRole(role string) bool {
	switch role {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem, models.RoleTool:
		return true
	}
	return false
}

func (c *Client) addMessage(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		SessionID string         `json:"session_id"`
		Role      string         `json:"role"`
		Content   string         `json:"content"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("add_message", toolclient.KindBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return toolclient.Failure("add_message", toolclient.KindBadRequest, "session_id is required")
	}
	if !validRole(req.Role) {
		return toolclient.Failure("add_message", toolclient.KindBadRequest, "role must be one of user, assistant, system, tool")
	}
	if req.Content == "" {
		return toolclient.Failure("add_message", toolclient.KindBadRequest, "content is required")
	}
	err := c.store.AddMessage(ctx, req.SessionID, models.SessionMessage{
		Role:     req.Role,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		return toolclient.FailureFromError("add_message", err)
	}
	return toolclient.Success("add_message", map[string]any{
		"session_id": SanitizeID(req.SessionID),
		"added":      true,
	})
}

func (c *Client) getMessages(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		SessionID string `json:"session_id"`
		Limit     int    `json:"limit"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("get_messages", toolclient.KindBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return toolclient.Failure("get_messages", toolclient.KindBadRequest, "session_id is required")
	}
	msgs, err := c.store.Messages(ctx, req.SessionID, req.Limit)
	if err != nil {
		return toolclient.FailureFromError("get_messages", err)
	}
	return toolclient.Success("get_messages", map[string]any{
		"session_id": SanitizeID(req.SessionID),
		"messages":   msgs,
		"count":      len(msgs),
	})
}

func (c *Client) getContext(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		SessionID   string `json:"session_id"`
		MaxMessages int    `json:"max_messages"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("get_context", toolclient.KindBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return toolclient.Failure("get_context", toolclient.KindBadRequest, "session_id is required")
	}
	text, err := c.store.Context(ctx, req.SessionID, req.MaxMessages)
	if err != nil {
		return toolclient.FailureFromError("get_context", err)
	}
	return toolclient.Success("get_context", map[string]any{
		"session_id": SanitizeID(req.SessionID),
		"context":    text,
	})
}

func (c *Client) search(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
		TopK      int    `json:"top_k"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("search", toolclient.KindBadRequest, err.Error())
	}
	if req.Query == "" {
		return toolclient.Failure("search", toolclient.KindBadRequest, "query is required")
	}
	results, err := c.store.Search(ctx, req.Query, req.SessionID, req.TopK)
	if err != nil {
		return toolclient.FailureFromError("search", err)
	}
	return toolclient.Success("search", map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (c *Client) clearSession(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("clear_session", toolclient.KindBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return toolclient.Failure("clear_session", toolclient.KindBadRequest, "session_id is required")
	}
	cleared, err := c.store.Clear(ctx, req.SessionID)
	if err != nil {
		return toolclient.FailureFromError("clear_session", err)
	}
	return toolclient.Success("clear_session", map[string]any{
		"session_id": SanitizeID(req.SessionID),
		"cleared":    cleared,
	})
}

func (c *Client) listSessions(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		Category string `json:"category"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("list_sessions", toolclient.KindBadRequest, err.Error())
	}
	infos, err := c.store.List(ctx, req.Category)
	if err != nil {
		return toolclient.FailureFromError("list_sessions", err)
	}
	return toolclient.Success("list_sessions", map[string]any{
		"sessions": infos,
		"count":    len(infos),
	})
}
