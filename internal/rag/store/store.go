// Package store persists documents, their version archives, and their
// embedded chunks in the shared relational store.
//
// One SQL implementation serves both dialects: the schema is migrated per
// dialect by internal/storage and the queries here are dialect-neutral
// ('?' placeholders rebound for postgres). Embeddings travel as
// little-endian float32 blobs; similarity is computed in-process, so
// correctness does not depend on a vector extension being present.
package store

import (
	"context"
	"time"

	"github.com/yaya56vv/cortex/pkg/models"
)

// DocumentStore defines the persistence surface the document service
// builds on.
type DocumentStore interface {
	// AddDocument stores a document and its chunks atomically. If the
	// document id already exists, the previous content is archived as a
	// DocumentVersion and the chunk set is replaced.
	AddDocument(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error

	// GetDocument retrieves a document by id. Returns (nil, nil) when the
	// document does not exist.
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// ListDocuments lists documents of one dataset, oldest first. An empty
	// dataset lists every document.
	ListDocuments(ctx context.Context, dataset models.Dataset) ([]*models.Document, error)

	// DeleteDocument removes a document and its chunks. Version archives
	// are retained. Reports whether a document was actually removed.
	DeleteDocument(ctx context.Context, id string) (bool, error)

	// DeleteDataset removes every document of a dataset together with its
	// chunks and version archives. Returns the number of documents removed.
	DeleteDataset(ctx context.Context, dataset models.Dataset) (int, error)

	// Versions returns the archived versions of a document, oldest first.
	// Archives survive deletion of the document itself.
	Versions(ctx context.Context, documentID string) ([]*models.DocumentVersion, error)

	// GetChunksByDocument returns all chunks of a document in order.
	GetChunksByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error)

	// SearchChunks ranks the dataset's chunks by cosine similarity to the
	// query embedding. Results are ordered by similarity descending, ties
	// by smaller (document_id, chunk index). An empty or unknown dataset
	// yields no results and no error.
	SearchChunks(ctx context.Context, dataset models.Dataset, embedding []float32, opts *SearchOptions) ([]*models.SearchResult, error)

	// DeleteOlderThan removes the dataset's documents created before the
	// cutoff, cascading to chunks. Version archives are retained. Returns
	// the number of documents removed.
	DeleteOlderThan(ctx context.Context, dataset models.Dataset, cutoff time.Time) (int, error)

	// DatasetStats reports document/chunk counts and the oldest creation
	// time for one dataset.
	DatasetStats(ctx context.Context, dataset models.Dataset) (*models.DatasetInfo, error)
}

// SearchOptions narrows and sizes a chunk search.
type SearchOptions struct {
	// TopK caps the number of results. Default 10.
	TopK int

	// Type keeps only chunks whose owning document carries this
	// metadata type.
	Type string

	// MinPriority keeps only chunks whose owning document is at or above
	// this priority (low < medium < high). Empty means no floor.
	MinPriority models.Priority
}

// DefaultSearchOptions returns the options used when the caller passes nil.
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{TopK: 10}
}
