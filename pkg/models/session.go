package models

import (
	"time"
)

// Message roles.
const (
	// RoleUser marks a message authored by the user.
	RoleUser = "user"

	// RoleAssistant marks a message authored by the assistant.
	RoleAssistant = "assistant"

	// RoleSystem marks an injected system message.
	RoleSystem = "system"

	// RoleTool marks output produced by a tool.
	RoleTool = "tool"
)

// SessionMessage is one entry in a session's conversational log.
type SessionMessage struct {
	// Role is one of user, assistant, system, tool.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is when the message was appended.
	Timestamp time.Time `json:"timestamp"`

	// Metadata carries optional attributes (e.g. {"source": "audio", "event_id": 42}).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Embedding is an optional per-message vector for similarity search.
	Embedding []float32 `json:"-"`
}

// Session is an identified conversational thread holding an ordered message history.
// Persisted as one file per session.
type Session struct {
	// SessionID is the sanitized session identifier.
	SessionID string `json:"session_id"`

	// CreatedAt is when the session was first written.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the session was last appended to.
	UpdatedAt time.Time `json:"updated_at"`

	// Messages is the ordered conversational log.
	Messages []SessionMessage `json:"messages"`
}

// SessionInfo summarizes a stored session for listings.
type SessionInfo struct {
	// SessionID is the sanitized session identifier.
	SessionID string `json:"session_id"`

	// Location is the storage bucket: active, archive/YYYY-MM, projects/<p>, tests.
	Location string `json:"location"`

	// MessageCount is the number of messages in the session.
	MessageCount int `json:"message_count"`

	// UpdatedAt is when the session was last appended to.
	UpdatedAt time.Time `json:"updated_at"`
}

// MemorySearchResult is one hit from a session memory search.
type MemorySearchResult struct {
	// SessionID is the session the message belongs to.
	SessionID string `json:"session_id"`

	// Message is the matching message.
	Message SessionMessage `json:"message"`

	// Similarity is the cosine similarity when embeddings are available, else 0.
	Similarity float64 `json:"similarity,omitempty"`
}
