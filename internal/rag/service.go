// Package rag implements the document store: dataset routing, chunking,
// synchronous embedding, and cosine retrieval over the shared relational
// store. It is exposed to the executor as the "rag" tool through an
// in-process client.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yaya56vv/cortex/internal/cache"
	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/rag/chunker"
	"github.com/yaya56vv/cortex/internal/rag/embeddings"
	"github.com/yaya56vv/cortex/internal/rag/store"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

const (
	// idContentPrefix is how many leading content bytes feed the document id.
	idContentPrefix = 256

	// queryCacheSize bounds the query-embedding LRU.
	queryCacheSize = 256

	// defaultTopK applies when a query does not name a result count.
	defaultTopK = 5
)

// DocumentID derives the deterministic identifier of a document from its
// dataset, filename, and leading content bytes. Re-ingesting the same triple
// overwrites rather than duplicates.
func DocumentID(dataset models.Dataset, filename, content string) string {
	if len(content) > idContentPrefix {
		content = content[:idContentPrefix]
	}
	h := sha256.New()
	h.Write([]byte(dataset))
	h.Write([]byte{0})
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Config assembles a Service.
type Config struct {
	// Store persists documents, chunks, and version archives. Required.
	Store store.DocumentStore

	// Embedder computes chunk and query embeddings. Required.
	Embedder embeddings.Provider

	// Chunker controls content splitting. Zero value means defaults.
	Chunker chunker.Config

	// DefaultTopK applies when a query does not name a result count.
	DefaultTopK int

	// RetentionOverrides replaces the built-in retention of named datasets,
	// in days. Zero disables expiry for that dataset.
	RetentionOverrides map[string]int

	// Logger receives service logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *observability.Metrics
}

// Service routes, chunks, embeds, stores, and retrieves documents.
//
// Writes take the write lock for the store transaction so concurrent reads
// never observe a half-applied ingest; reads share the read lock.
type Service struct {
	store     store.DocumentStore
	embedder  embeddings.Provider
	chunkCfg  chunker.Config
	topK      int
	retention map[models.Dataset]int
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu    sync.RWMutex
	cache *cache.Vectors
}

// New assembles a Service. When the store fixes an embedding dimension it
// must match the provider's.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = defaultTopK
	}
	if sized, ok := cfg.Store.(interface{ Dimension() int }); ok {
		if sized.Dimension() != cfg.Embedder.Dimension() {
			return nil, fmt.Errorf("rag: store dimension %d does not match embedder %q dimension %d",
				sized.Dimension(), cfg.Embedder.Name(), cfg.Embedder.Dimension())
		}
	}

	retention := make(map[models.Dataset]int, len(defaultRetention))
	for d, days := range defaultRetention {
		retention[d] = days
	}
	for name, days := range cfg.RetentionOverrides {
		if days < 0 {
			continue
		}
		tag := strings.ToLower(strings.TrimSpace(name))
		d := models.Dataset(tag)
		if !d.Valid() {
			alias, ok := datasetAliases[tag]
			if !ok {
				cfg.Logger.Warn("ignoring retention override for unknown dataset", "dataset", name)
				continue
			}
			d = alias
		}
		retention[d] = days
	}

	return &Service{
		store:     cfg.Store,
		embedder:  cfg.Embedder,
		chunkCfg:  cfg.Chunker,
		topK:      cfg.DefaultTopK,
		retention: retention,
		logger:    cfg.Logger.With("component", "rag"),
		metrics:   cfg.Metrics,
		cache:     cache.NewVectors(queryCacheSize),
	}, nil
}

// RetentionDays returns the effective retention of a dataset in days,
// overrides applied. Zero means never expire.
func (s *Service) RetentionDays(d models.Dataset) int {
	return s.retention[d]
}

// AddDocumentRequest is one ingest.
type AddDocumentRequest struct {
	// Dataset is the target tag; empty means route by metadata type.
	Dataset string

	// Filename names the document. Required.
	Filename string

	// Content is the full text to index.
	Content string

	// Metadata carries routing and filter attributes.
	Metadata models.DocumentMetadata
}

// AddDocument chunks and embeds the content, then stores the document
// atomically. Re-ingesting an existing id archives the previous content and
// bumps the version. A failing embedder aborts the ingest with
// embedding_unavailable; nothing is half-applied.
func (s *Service) AddDocument(ctx context.Context, req AddDocumentRequest) (*models.Document, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, toolclient.NewError(toolclient.KindBadRequest, "rag", "add_document", "filename is required")
	}

	dataset := RouteDataset(req.Dataset, req.Metadata.Type)
	meta := req.Metadata
	sanitizeMetadata(&meta)

	pieces := chunker.ForFile(req.Filename, s.chunkCfg).Split(req.Content)
	vectors, err := s.embedAll(ctx, pieces)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordIngest(string(dataset), "error", 0)
		}
		terr := toolclient.NewError(toolclient.KindEmbeddingUnavailable, "rag", "add_document",
			fmt.Sprintf("embedding %d chunks failed: %v", len(pieces), err))
		terr.Cause = err
		return nil, terr
	}

	doc := &models.Document{
		ID:       DocumentID(dataset, req.Filename, req.Content),
		Dataset:  dataset,
		Filename: req.Filename,
		Content:  req.Content,
		Metadata: meta,
	}
	chunks := make([]*models.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &models.DocumentChunk{
			DocumentID: doc.ID,
			Index:      i,
			Content:    piece,
			Embedding:  vectors[i],
		}
	}

	s.mu.Lock()
	err = s.store.AddDocument(ctx, doc, chunks)
	s.mu.Unlock()
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordIngest(string(dataset), "error", 0)
		}
		return nil, fmt.Errorf("store document %s: %w", doc.ID, err)
	}

	status := "created"
	if doc.Version > 1 {
		status = "updated"
	}
	if s.metrics != nil {
		s.metrics.RecordIngest(string(dataset), status, len(chunks))
	}
	s.logger.Info("document ingested",
		"dataset", dataset,
		"document_id", doc.ID,
		"filename", doc.Filename,
		"version", doc.Version,
		"chunks", len(chunks))
	return doc, nil
}

// QueryRequest is one retrieval query.
type QueryRequest struct {
	// Dataset is the tag to search; aliases are canonicalized.
	Dataset string

	// Text is the query text. Required.
	Text string

	// TopK caps the number of results; zero means the service default.
	TopK int

	// Type keeps only results whose owning document carries this type.
	Type string

	// MinPriority keeps only results at or above this priority. Unknown
	// values are dropped rather than failing the query.
	MinPriority string
}

// Query embeds the text once and ranks the dataset's chunks by cosine
// similarity. An empty dataset yields an empty slice, not an error.
func (s *Service) Query(ctx context.Context, req QueryRequest) ([]*models.SearchResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, toolclient.NewError(toolclient.KindBadRequest, "rag", "query", "text is required")
	}

	dataset := CanonicalDataset(req.Dataset)
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	minPriority := models.Priority(strings.ToLower(strings.TrimSpace(req.MinPriority)))
	if !minPriority.Valid() {
		minPriority = ""
	}

	embedding, err := s.queryEmbedding(ctx, req.Text)
	if err != nil {
		terr := toolclient.NewError(toolclient.KindEmbeddingUnavailable, "rag", "query",
			fmt.Sprintf("embedding query failed: %v", err))
		terr.Cause = err
		return nil, terr
	}

	start := time.Now()
	s.mu.RLock()
	results, err := s.store.SearchChunks(ctx, dataset, embedding, &store.SearchOptions{
		TopK:        topK,
		Type:        strings.ToLower(strings.TrimSpace(req.Type)),
		MinPriority: minPriority,
	})
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", dataset, err)
	}
	if s.metrics != nil {
		s.metrics.RecordRAGQuery(string(dataset), time.Since(start).Seconds())
	}
	if results == nil {
		results = []*models.SearchResult{}
	}
	s.logger.Debug("query served", "dataset", dataset, "results", len(results), "top_k", topK)
	return results, nil
}

// GetDocument retrieves one document by id. Returns (nil, nil) when absent.
func (s *Service) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.GetDocument(ctx, id)
}

// ListDocuments lists a dataset's documents, oldest first. An empty tag
// lists every dataset.
func (s *Service) ListDocuments(ctx context.Context, dataset string) ([]*models.Document, error) {
	var d models.Dataset
	if strings.TrimSpace(dataset) != "" {
		d = CanonicalDataset(dataset)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListDocuments(ctx, d)
}

// ListDatasets reports stats and retention for every dataset in the
// taxonomy, in canonical order.
func (s *Service) ListDatasets(ctx context.Context) ([]*models.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]*models.DatasetInfo, 0, len(models.Datasets()))
	for _, d := range models.Datasets() {
		info, err := s.store.DatasetStats(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", d, err)
		}
		info.RetentionDays = s.RetentionDays(d)
		infos = append(infos, info)
	}
	return infos, nil
}

// GetDatasetInfo reports stats and retention for one dataset.
func (s *Service) GetDatasetInfo(ctx context.Context, dataset string) (*models.DatasetInfo, error) {
	d := CanonicalDataset(dataset)
	s.mu.RLock()
	info, err := s.store.DatasetStats(ctx, d)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", d, err)
	}
	info.RetentionDays = s.RetentionDays(d)
	return info, nil
}

// Versions lists the archived versions of a document, oldest first.
// Archives survive deletion of the document itself.
func (s *Service) Versions(ctx context.Context, documentID string) ([]*models.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Versions(ctx, documentID)
}

// DeleteDocument removes a document and its chunks, keeping version
// archives. Reports whether a document was actually removed.
func (s *Service) DeleteDocument(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, toolclient.NewError(toolclient.KindBadRequest, "rag", "delete_document", "document_id is required")
	}
	s.mu.Lock()
	deleted, err := s.store.DeleteDocument(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", id, err)
	}
	if deleted {
		s.logger.Info("document deleted", "document_id", id)
	}
	return deleted, nil
}

// DeleteDataset removes every document of a dataset, including chunks and
// version archives. Returns the number of documents removed.
func (s *Service) DeleteDataset(ctx context.Context, dataset string) (int, error) {
	d := CanonicalDataset(dataset)
	s.mu.Lock()
	n, err := s.store.DeleteDataset(ctx, d)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("delete dataset %s: %w", d, err)
	}
	s.logger.Info("dataset deleted", "dataset", d, "documents", n)
	return n, nil
}

// CleanupMemory expires scratchpad documents older than retentionDays
// (default 7). Only scratchpad is touched; the call is idempotent.
func (s *Service) CleanupMemory(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays(models.DatasetScratchpad)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	s.mu.Lock()
	n, err := s.store.DeleteOlderThan(ctx, models.DatasetScratchpad, cutoff)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("cleanup scratchpad: %w", err)
	}
	if n > 0 {
		s.logger.Info("scratchpad cleaned", "deleted", n, "retention_days", retentionDays)
	}
	return n, nil
}

// RetentionSweep applies the retention policy to every dataset that has one,
// returning deletions per swept dataset. Datasets with zero retention are
// never touched.
func (s *Service) RetentionSweep(ctx context.Context) (map[models.Dataset]int, error) {
	deleted := make(map[models.Dataset]int)
	now := time.Now().UTC()
	for _, d := range models.Datasets() {
		days := s.RetentionDays(d)
		if days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -days)
		s.mu.Lock()
		n, err := s.store.DeleteOlderThan(ctx, d, cutoff)
		s.mu.Unlock()
		if err != nil {
			return deleted, fmt.Errorf("sweep %s: %w", d, err)
		}
		deleted[d] = n
		if n > 0 {
			s.logger.Info("retention applied", "dataset", d, "deleted", n, "retention_days", days)
		}
	}
	return deleted, nil
}

// embedAll embeds texts in provider-sized batches, preserving order.
func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batchSize := s.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}
	start := time.Now()
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordEmbedding(s.embedder.Name(), "error", time.Since(start).Seconds())
			}
			return nil, err
		}
		out = append(out, batch...)
	}
	if s.metrics != nil {
		s.metrics.RecordEmbedding(s.embedder.Name(), "success", time.Since(start).Seconds())
	}
	return out, nil
}

// queryEmbedding embeds query text through a small LRU, so repeated queries
// within a session skip the provider round trip.
func (s *Service) queryEmbedding(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.cache.Get(text); ok {
		return vec, nil
	}
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordEmbedding(s.embedder.Name(), "error", time.Since(start).Seconds())
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordEmbedding(s.embedder.Name(), "success", time.Since(start).Seconds())
	}
	s.cache.Put(text, vec)
	return vec, nil
}
