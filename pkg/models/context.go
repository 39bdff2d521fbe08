package models

// SectionStatus is the outcome of one context source fetch.
type SectionStatus string

const (
	// SectionOK means the source responded in time.
	SectionOK SectionStatus = "ok"

	// SectionError means the source failed or timed out; Content is empty.
	SectionError SectionStatus = "error"

	// SectionSkipped means the source was not consulted for this request.
	SectionSkipped SectionStatus = "skipped"
)

// ContextSection is the contribution of one source to a SuperContext.
type ContextSection struct {
	// Status reports whether the source produced content.
	Status SectionStatus `json:"status"`

	// Content is the rendered text from the source, possibly truncated.
	Content string `json:"content,omitempty"`

	// Error describes the failure when Status is "error".
	Error string `json:"error,omitempty"`

	// Truncated is true when Content was cut to the per-source cap.
	Truncated bool `json:"truncated,omitempty"`
}

// ContextMetadata summarizes how a SuperContext was assembled.
type ContextMetadata struct {
	// SourcesAvailable lists the sources that returned content.
	SourcesAvailable []string `json:"sources_available"`

	// TotalContextSize is the combined byte size of all section content.
	TotalContextSize int `json:"total_context_size"`

	// Intent is the routed intent for the user message, when known.
	Intent string `json:"intent,omitempty"`
}

// SuperContext is the merged view of everything the kernel knows that is
// relevant to one user message. It is assembled by the context builder and
// consumed by the planner.
type SuperContext struct {
	// UserMessage is the raw prompt being answered.
	UserMessage string `json:"user_message"`

	// SessionID is the session the message belongs to.
	SessionID string `json:"session_id"`

	// Memory is recent conversation context from the session store.
	Memory *ContextSection `json:"memory,omitempty"`

	// MemorySearch is semantically similar prior messages.
	MemorySearch *ContextSection `json:"memory_search,omitempty"`

	// RAG holds retrieval results keyed by dataset name.
	RAG map[string]*ContextSection `json:"rag,omitempty"`

	// Vision is the latest visual context, when the intent calls for it.
	Vision *ContextSection `json:"vision,omitempty"`

	// Audio is the latest audio transcription context.
	Audio *ContextSection `json:"audio,omitempty"`

	// System is an OS state snapshot, when the intent calls for it.
	System *ContextSection `json:"system,omitempty"`

	// Documents is recent document-generation context.
	Documents *ContextSection `json:"documents,omitempty"`

	// Metadata summarizes the assembly.
	Metadata ContextMetadata `json:"metadata"`
}

// Sections returns every populated section keyed by source name. RAG sections
// are keyed "rag:<dataset>".
func (c *SuperContext) Sections() map[string]*ContextSection {
	out := make(map[string]*ContextSection)
	put := func(name string, s *ContextSection) {
		if s != nil {
			out[name] = s
		}
	}
	put("memory", c.Memory)
	put("memory_search", c.MemorySearch)
	put("vision", c.Vision)
	put("audio", c.Audio)
	put("system", c.System)
	put("documents", c.Documents)
	for dataset, s := range c.RAG {
		put("rag:"+dataset, s)
	}
	return out
}
