package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yaya56vv/cortex/internal/storage"
	"github.com/yaya56vv/cortex/pkg/models"
)

// SQLStore implements DocumentStore on the shared relational handle.
// Timestamps are written in UTC throughout: sqlite compares them as text,
// so a uniform zone keeps ordering chronological.
type SQLStore struct {
	db        *storage.DB
	dimension int
}

var _ DocumentStore = (*SQLStore)(nil)

// Config configures the SQL document store.
type Config struct {
	// DB is the open relational handle. The caller owns its lifecycle.
	DB *storage.DB

	// Dimension is the embedding dimension accepted on writes and
	// queries. Default 384.
	Dimension int
}

// New creates a document store over an open database.
func New(cfg Config) (*SQLStore, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("store requires an open database")
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 384
	}
	return &SQLStore{db: cfg.DB, dimension: cfg.Dimension}, nil
}

// Dimension returns the embedding dimension the store accepts.
func (s *SQLStore) Dimension() int {
	return s.dimension
}

// AddDocument stores a document and its chunks in one transaction. An
// existing document is archived as a DocumentVersion first; the archive
// version continues from the highest archived version, so archives kept
// across a delete/re-ingest of the same id never collide.
func (s *SQLStore) AddDocument(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error {
	for i, chunk := range chunks {
		if err := s.validateEmbedding(chunk.Embedding); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal document metadata: %w", err)
	}

	now := time.Now().UTC()
	doc.ChunkCount = len(chunks)

	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		prevVersion  int
		prevContent  string
		prevMetadata string
		prevCreated  time.Time
	)
	err = tx.QueryRowContext(ctx, s.db.Rebind(`
		SELECT version, content, metadata, created_at FROM rag_documents WHERE id = ?
	`), doc.ID).Scan(&prevVersion, &prevContent, &prevMetadata, &prevCreated)
	switch {
	case err == sql.ErrNoRows:
		doc.Version = 1
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.CreatedAt = doc.CreatedAt.UTC()
		doc.UpdatedAt = now

		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO rag_documents (id, dataset, filename, content, metadata, version, chunk_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), doc.ID, doc.Dataset, doc.Filename, doc.Content, string(metadata),
			doc.Version, doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}

	case err != nil:
		return fmt.Errorf("query existing document: %w", err)

	default:
		var archiveVersion int
		err = tx.QueryRowContext(ctx, s.db.Rebind(`
			SELECT COALESCE(MAX(version), 0) + 1 FROM rag_document_versions WHERE document_id = ?
		`), doc.ID).Scan(&archiveVersion)
		if err != nil {
			return fmt.Errorf("next archive version: %w", err)
		}

		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO rag_document_versions (document_id, dataset, version, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`), doc.ID, doc.Dataset, archiveVersion, prevContent, prevMetadata, now)
		if err != nil {
			return fmt.Errorf("archive document version: %w", err)
		}

		doc.Version = prevVersion + 1
		doc.CreatedAt = prevCreated
		doc.UpdatedAt = now

		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			UPDATE rag_documents
			SET filename = ?, content = ?, metadata = ?, version = ?, chunk_count = ?, updated_at = ?
			WHERE id = ?
		`), doc.Filename, doc.Content, string(metadata), doc.Version, doc.ChunkCount, doc.UpdatedAt, doc.ID)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			DELETE FROM rag_document_chunks WHERE document_id = ?
		`), doc.ID)
		if err != nil {
			return fmt.Errorf("delete previous chunks: %w", err)
		}
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(`
			INSERT INTO rag_document_chunks (id, document_id, chunk_index, content, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			if chunk.ID == "" {
				chunk.ID = uuid.New().String()
			}
			chunk.DocumentID = doc.ID
			if chunk.CreatedAt.IsZero() {
				chunk.CreatedAt = now
			}
			_, err = stmt.ExecContext(ctx,
				chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content,
				encodeEmbedding(chunk.Embedding), chunk.CreatedAt.UTC())
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
			}
		}
	}

	return tx.Commit()
}

// GetDocument retrieves a document by id, or (nil, nil) when absent.
func (s *SQLStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.SQL.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, dataset, filename, content, metadata, version, chunk_count, created_at, updated_at
		FROM rag_documents
		WHERE id = ?
	`), id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

// ListDocuments lists the dataset's documents, oldest first.
func (s *SQLStore) ListDocuments(ctx context.Context, dataset models.Dataset) ([]*models.Document, error) {
	query := `
		SELECT id, dataset, filename, content, metadata, version, chunk_count, created_at, updated_at
		FROM rag_documents
	`
	args := []any{}
	if dataset != "" {
		query += ` WHERE dataset = ?`
		args = append(args, dataset)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.SQL.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its chunks. The version archive
// is left in place.
func (s *SQLStore) DeleteDocument(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM rag_document_chunks WHERE document_id = ?
	`), id); err != nil {
		return false, fmt.Errorf("delete chunks: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM rag_documents WHERE id = ?
	`), id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}

// DeleteDataset removes the dataset's documents, chunks, and version
// archives. Returns the number of documents removed.
func (s *SQLStore) DeleteDataset(ctx context.Context, dataset models.Dataset) (int, error) {
	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM rag_document_chunks
		WHERE document_id IN (SELECT id FROM rag_documents WHERE dataset = ?)
	`), dataset); err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM rag_documents WHERE dataset = ?
	`), dataset)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM rag_document_versions WHERE dataset = ?
	`), dataset); err != nil {
		return 0, fmt.Errorf("delete version archives: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// Versions returns a document's archived versions, oldest first.
func (s *SQLStore) Versions(ctx context.Context, documentID string) ([]*models.DocumentVersion, error) {
	rows, err := s.db.SQL.QueryContext(ctx, s.db.Rebind(`
		SELECT document_id, version, content, metadata, created_at
		FROM rag_document_versions
		WHERE document_id = ?
		ORDER BY version ASC
	`), documentID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.DocumentVersion
	for rows.Next() {
		var (
			v            models.DocumentVersion
			metadataJSON string
		)
		if err := rows.Scan(&v.DocumentID, &v.Version, &v.Content, &metadataJSON, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		if err := unmarshalMetadata(metadataJSON, &v.Metadata); err != nil {
			return nil, err
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// GetChunksByDocument returns all chunks of a document in index order.
func (s *SQLStore) GetChunksByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error) {
	rows, err := s.db.SQL.QueryContext(ctx, s.db.Rebind(`
		SELECT id, document_id, chunk_index, content, embedding, created_at
		FROM rag_document_chunks
		WHERE document_id = ?
		ORDER BY chunk_index ASC
	`), documentID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.DocumentChunk
	for rows.Next() {
		var (
			chunk models.DocumentChunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content, &blob, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Embedding = decodeEmbedding(blob)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// SearchChunks scans the dataset's chunks, filters on the owning
// document's metadata, and ranks by cosine similarity. Negative
// similarities clamp to 0 so scores stay in [0, 1].
func (s *SQLStore) SearchChunks(ctx context.Context, dataset models.Dataset, embedding []float32, opts *SearchOptions) ([]*models.SearchResult, error) {
	if opts == nil {
		opts = DefaultSearchOptions()
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}
	if err := s.validateEmbedding(embedding); err != nil {
		return nil, err
	}

	rows, err := s.db.SQL.QueryContext(ctx, s.db.Rebind(`
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.embedding, d.filename, d.metadata
		FROM rag_document_chunks c
		JOIN rag_documents d ON d.id = c.document_id
		WHERE d.dataset = ?
	`), dataset)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []*models.SearchResult
	for rows.Next() {
		var (
			r            models.SearchResult
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Index, &r.Content, &blob, &r.Filename, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := unmarshalMetadata(metadataJSON, &r.Metadata); err != nil {
			return nil, err
		}

		if opts.Type != "" && r.Metadata.Type != opts.Type {
			continue
		}
		if opts.MinPriority != "" && r.Metadata.Priority.Rank() < opts.MinPriority.Rank() {
			continue
		}

		sim := cosineSimilarity(embedding, decodeEmbedding(blob))
		if sim < 0 {
			sim = 0
		}
		r.Similarity = sim
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].Index < results[j].Index
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteOlderThan sweeps the dataset's documents created before the
// cutoff. Version archives are retained.
func (s *SQLStore) DeleteOlderThan(ctx context.Context, dataset models.Dataset, cutoff time.Time) (int, error) {
	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM rag_document_chunks
		WHERE document_id IN (SELECT id FROM rag_documents WHERE dataset = ? AND created_at < ?)
	`), dataset, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM rag_documents WHERE dataset = ? AND created_at < ?
	`), dataset, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// DatasetStats reports document/chunk counts and the oldest creation time
// for one dataset.
func (s *SQLStore) DatasetStats(ctx context.Context, dataset models.Dataset) (*models.DatasetInfo, error) {
	info := &models.DatasetInfo{Dataset: dataset}

	err := s.db.SQL.QueryRowContext(ctx, s.db.Rebind(`
		SELECT COUNT(*) FROM rag_documents WHERE dataset = ?
	`), dataset).Scan(&info.Documents)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	err = s.db.SQL.QueryRowContext(ctx, s.db.Rebind(`
		SELECT COUNT(*)
		FROM rag_document_chunks c
		JOIN rag_documents d ON d.id = c.document_id
		WHERE d.dataset = ?
	`), dataset).Scan(&info.Chunks)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	var oldest time.Time
	err = s.db.SQL.QueryRowContext(ctx, s.db.Rebind(`
		SELECT created_at FROM rag_documents WHERE dataset = ? ORDER BY created_at ASC LIMIT 1
	`), dataset).Scan(&oldest)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("oldest document: %w", err)
	default:
		info.OldestDocument = &oldest
	}

	return info, nil
}

// validateEmbedding rejects vectors of the wrong dimension or with
// non-finite components before anything touches the database.
func (s *SQLStore) validateEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.dimension)
	}
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("embedding contains invalid values")
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*models.Document, error) {
	var (
		doc          models.Document
		metadataJSON string
	)
	err := sc.Scan(
		&doc.ID, &doc.Dataset, &doc.Filename, &doc.Content, &metadataJSON,
		&doc.Version, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}
	return &doc, nil
}

func unmarshalMetadata(raw string, into *models.DocumentMetadata) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return fmt.Errorf("unmarshal document metadata: %w", err)
	}
	return nil
}
