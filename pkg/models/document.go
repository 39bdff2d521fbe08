// Package models defines the core data types for Cortex.
package models

import (
	"time"
)

// Dataset identifies a named bucket inside the document store.
// The taxonomy is fixed; aliases are canonicalized by the RAG service.
type Dataset string

const (
	// DatasetAgentCore holds permanent identity, rules, and structural facts.
	DatasetAgentCore Dataset = "agent_core"

	// DatasetContextFlow holds rolling summaries and conversational distillate.
	DatasetContextFlow Dataset = "context_flow"

	// DatasetAgentMemory holds feedback and lessons learned.
	DatasetAgentMemory Dataset = "agent_memory"

	// DatasetProjects holds code and docs of ongoing work.
	DatasetProjects Dataset = "projects"

	// DatasetScratchpad holds ephemeral notes.
	DatasetScratchpad Dataset = "scratchpad"
)

// Datasets lists the fixed taxonomy in canonical order.
func Datasets() []Dataset {
	return []Dataset{
		DatasetAgentCore,
		DatasetContextFlow,
		DatasetAgentMemory,
		DatasetProjects,
		DatasetScratchpad,
	}
}

// Valid reports whether d is part of the fixed taxonomy.
func (d Dataset) Valid() bool {
	switch d {
	case DatasetAgentCore, DatasetContextFlow, DatasetAgentMemory, DatasetProjects, DatasetScratchpad:
		return true
	}
	return false
}

// Priority orders documents for retrieval filters (low < medium < high).
type Priority string

const (
	// PriorityLow is the default priority.
	PriorityLow Priority = "low"

	// PriorityMedium marks documents of moderate importance.
	PriorityMedium Priority = "medium"

	// PriorityHigh marks documents that should dominate retrieval.
	PriorityHigh Priority = "high"
)

// Rank returns the numeric order of the priority (low=0, medium=1, high=2).
// Unknown values rank as low.
func (p Priority) Rank() int {
	switch p {
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	default:
		return 0
	}
}

// Valid reports whether p is a known priority value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Document represents a complete document in the RAG store.
// Documents are chunked and embedded before being indexed.
type Document struct {
	// ID is the deterministic identifier derived from (dataset, filename, leading content).
	ID string `json:"id"`

	// Dataset is the taxonomy bucket owning the document.
	Dataset Dataset `json:"dataset"`

	// Filename is the human-readable name of the document.
	Filename string `json:"filename"`

	// Content is the full text content.
	Content string `json:"content"`

	// Metadata contains additional information about the document.
	Metadata DocumentMetadata `json:"metadata"`

	// Version counts overwrites of this document id (monotonic, >= 1).
	Version int `json:"version"`

	// ChunkCount is the number of chunks the content was split into.
	ChunkCount int `json:"chunk_count,omitempty"`

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last overwritten.
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentMetadata carries routing and filter attributes of a document.
type DocumentMetadata struct {
	// Type routes documents to datasets and supports query filters.
	// Known values: core_rule, context_data, learning_data, project_doc, general.
	Type string `json:"type,omitempty"`

	// Priority orders documents for min_priority filters.
	Priority Priority `json:"priority,omitempty"`

	// SessionID links the document to the session that produced it.
	SessionID string `json:"session_id,omitempty"`

	// Source records where the content came from (e.g. "vision_sync", "watcher").
	Source string `json:"source,omitempty"`

	// EventID points at the timeline event a derived document originated from.
	EventID int64 `json:"event_id,omitempty"`

	// Project names the project a document belongs to.
	Project string `json:"project,omitempty"`

	// Extra contains user-defined metadata fields.
	Extra map[string]any `json:"extra,omitempty"`
}

// DocumentVersion is an append-only archive of prior content of a document.
type DocumentVersion struct {
	// DocumentID links the archived content to its document.
	DocumentID string `json:"document_id"`

	// Version is the archive counter, starting at 1 for the first overwrite.
	Version int `json:"version"`

	// Content is the archived text.
	Content string `json:"content"`

	// Metadata is the archived metadata.
	Metadata DocumentMetadata `json:"metadata"`

	// CreatedAt is when the archive row was written.
	CreatedAt time.Time `json:"created_at"`
}

// DocumentChunk is a slice of a document's content paired with an embedding.
// Chunks are the atomic unit of similarity search.
type DocumentChunk struct {
	// ID is the unique identifier for this chunk.
	ID string `json:"id"`

	// DocumentID links this chunk to its parent document.
	DocumentID string `json:"document_id"`

	// Index is the position of this chunk within the document (0-based, dense).
	Index int `json:"index"`

	// Content is the text content of this chunk.
	Content string `json:"content"`

	// Embedding is the vector used for similarity search.
	Embedding []float32 `json:"-"`

	// CreatedAt is when the chunk was created.
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult is one similarity hit returned by a RAG query.
type SearchResult struct {
	// ChunkID identifies the matching chunk.
	ChunkID string `json:"chunk_id"`

	// DocumentID identifies the owning document.
	DocumentID string `json:"document_id"`

	// Index is the chunk's order index inside its document.
	Index int `json:"index"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Filename is the owning document's filename.
	Filename string `json:"filename"`

	// Metadata is the owning document's metadata.
	Metadata DocumentMetadata `json:"metadata"`

	// Similarity is the cosine similarity to the query, in [0, 1].
	Similarity float64 `json:"similarity"`
}

// DatasetInfo summarizes one dataset of the document store.
type DatasetInfo struct {
	// Dataset is the bucket being described.
	Dataset Dataset `json:"dataset"`

	// Documents is the number of documents currently stored.
	Documents int `json:"documents"`

	// Chunks is the number of chunks currently stored.
	Chunks int `json:"chunks"`

	// RetentionDays is the retention policy (0 means never expires).
	RetentionDays int `json:"retention_days"`

	// OldestDocument is the creation time of the oldest document, if any.
	OldestDocument *time.Time `json:"oldest_document,omitempty"`
}
