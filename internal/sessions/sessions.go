// Package sessions implements conversational memory: one JSON file per
// session, laid out hierarchically (active, archive by month, projects,
// tests), with per-session locks, an archival sweep, and substring plus
// optional embedding search. Exposed to the executor as the "memory" tool.
package sessions

import (
	"context"
	"errors"
	"strings"

	"github.com/yaya56vv/cortex/pkg/models"
)

// ErrLockTimeout is returned when a session lock cannot be acquired in time.
var ErrLockTimeout = errors.New("sessions: lock acquisition timed out")

// Store is the session persistence surface the memory tool builds on.
type Store interface {
	// AddMessage appends one message, creating the session on first write.
	AddMessage(ctx context.Context, sessionID string, msg models.SessionMessage) error

	// Messages returns the tail of the session's log (limit <= 0 means all).
	// An absent session yields an empty slice.
	Messages(ctx context.Context, sessionID string, limit int) ([]models.SessionMessage, error)

	// Context renders the last maxMessages messages as "[role] content\n"
	// lines, newest at the bottom. An absent session renders empty.
	Context(ctx context.Context, sessionID string, maxMessages int) (string, error)

	// Search matches messages by case-insensitive substring; when an
	// embedding provider is available it additionally ranks by cosine
	// similarity, merged top-k by similarity then recency. An empty
	// sessionID searches every session.
	Search(ctx context.Context, query, sessionID string, topK int) ([]models.MemorySearchResult, error)

	// Clear deletes a session file. Reports whether one existed.
	Clear(ctx context.Context, sessionID string) (bool, error)

	// List summarizes stored sessions, newest first. A category prefix
	// ("active", "archive", "projects", "tests") narrows the listing.
	List(ctx context.Context, category string) ([]models.SessionInfo, error)

	// Get loads one full session. Returns (nil, nil) when absent.
	Get(ctx context.Context, sessionID string) (*models.Session, error)
}

// SanitizeID normalizes a session id to the allowed alphabet (letters,
// digits, dash, underscore); every other rune maps to underscore. Empty ids
// become "default".
func SanitizeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	id := b.String()
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}
