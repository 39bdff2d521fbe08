package rag

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// Client exposes the Service as the "rag" tool so executor steps run
// in-process, without a network hop. Configuration may still point the
// registry at an external rag service instead; the contract is identical.
type Client struct {
	service *Service
}

var _ toolclient.Client = (*Client)(nil)

// NewClient wraps a Service in the tool contract.
func NewClient(service *Service) *Client {
	return &Client{service: service}
}

// Tool returns the catalog tool name.
func (c *Client) Tool() string {
	return "rag"
}

// Call dispatches one catalog action.
func (c *Client) Call(ctx context.Context, action string, args map[string]any) toolclient.Result {
	switch action {
	case "add_document":
		return c.addDocument(ctx, args)
	case "query":
		return c.query(ctx, args)
	case "list_documents":
		return c.listDocuments(ctx, args)
	case "list_datasets":
		return c.listDatasets(ctx)
	case "delete_document":
		return c.deleteDocument(ctx, args)
	case "delete_dataset":
		return c.deleteDataset(ctx, args)
	case "get_dataset_info":
		return c.datasetInfo(ctx, args)
	case "cleanup_memory":
		return c.cleanupMemory(ctx, args)
	default:
		return toolclient.Failure(action, toolclient.KindUnknownAction, "rag has no action "+action)
	}
}

// Health probes the store and reports the embedding provider.
func (c *Client) Health(ctx context.Context) toolclient.Health {
	details := map[string]any{
		"embedder":  c.service.embedder.Name(),
		"dimension": c.service.embedder.Dimension(),
	}
	if _, err := c.service.GetDatasetInfo(ctx, string(models.DatasetScratchpad)); err != nil {
		details["error"] = err.Error()
		return toolclient.Health{OK: false, Details: details}
	}
	return toolclient.Health{OK: true, Details: details}
}

func (c *Client) addDocument(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		Dataset  string         `json:"dataset"`
		Filename string         `json:"filename"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("add_document", toolclient.KindBadRequest, err.Error())
	}
	doc, err := c.service.AddDocument(ctx, AddDocumentRequest{
		Dataset:  req.Dataset,
		Filename: req.Filename,
		Content:  req.Content,
		Metadata: parseMetadata(req.Metadata),
	})
	if err != nil {
		return toolclient.FailureFromError("add_document", err)
	}
	return toolclient.Success("add_document", map[string]any{
		"document_id": doc.ID,
		"dataset":     doc.Dataset,
		"version":     doc.Version,
		"chunks":      doc.ChunkCount,
	})
}

func (c *Client) query(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		Dataset string `json:"dataset"`
		Text    string `json:"text"`
		TopK    int    `json:"top_k"`
		Filters struct {
			Type        string `json:"type"`
			MinPriority string `json:"min_priority"`
		} `json:"filters"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("query", toolclient.KindBadRequest, err.Error())
	}
	results, err := c.service.Query(ctx, QueryRequest{
		Dataset:     req.Dataset,
		Text:        req.Text,
		TopK:        req.TopK,
		Type:        req.Filters.Type,
		MinPriority: req.Filters.MinPriority,
	})
	if err != nil {
		return toolclient.FailureFromError("query", err)
	}
	return toolclient.Success("query", map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// documentSummary is the list_documents projection: everything but the
// content body.
type documentSummary struct {
	ID         string                  `json:"id"`
	Dataset    models.Dataset          `json:"dataset"`
	Filename   string                  `json:"filename"`
	Metadata   models.DocumentMetadata `json:"metadata"`
	Version    int                     `json:"version"`
	ChunkCount int                     `json:"chunk_count"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

func (c *Client) listDocuments(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		Dataset string `json:"dataset"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("list_documents", toolclient.KindBadRequest, err.Error())
	}
	docs, err := c.service.ListDocuments(ctx, req.Dataset)
	if err != nil {
		return toolclient.FailureFromError("list_documents", err)
	}
	summaries := make([]documentSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, documentSummary{
			ID:         doc.ID,
			Dataset:    doc.Dataset,
			Filename:   doc.Filename,
			Metadata:   doc.Metadata,
			Version:    doc.Version,
			ChunkCount: doc.ChunkCount,
			CreatedAt:  doc.CreatedAt,
			UpdatedAt:  doc.UpdatedAt,
		})
	}
	return toolclient.Success("list_documents", map[string]any{
		"documents": summaries,
		"count":     len(summaries),
	})
}

func (c *Client) listDatasets(ctx context.Context) toolclient.Result {
	infos, err := c.service.ListDatasets(ctx)
	if err != nil {
		return toolclient.FailureFromError("list_datasets", err)
	}
	return toolclient.Success("list_datasets", map[string]any{
		"datasets": infos,
	})
}

func (c *Client) deleteDocument(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		DocumentID string `json:"document_id"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("delete_document", toolclient.KindBadRequest, err.Error())
	}
	deleted, err := c.service.DeleteDocument(ctx, req.DocumentID)
	if err != nil {
		return toolclient.FailureFromError("delete_document", err)
	}
	return toolclient.Success("delete_document", map[string]any{
		"document_id": req.DocumentID,
		"deleted":     deleted,
	})
}

func (c *Client) deleteDataset(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		Dataset string `json:"dataset"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("delete_dataset", toolclient.KindBadRequest, err.Error())
	}
	if req.Dataset == "" {
		return toolclient.Failure("delete_dataset", toolclient.KindBadRequest, "dataset is required")
	}
	n, err := c.service.DeleteDataset(ctx, req.Dataset)
	if err != nil {
		return toolclient.FailureFromError("delete_dataset", err)
	}
	return toolclient.Success("delete_dataset", map[string]any{
		"dataset": CanonicalDataset(req.Dataset),
		"deleted": n,
	})
}

func (c *Client) datasetInfo(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		Dataset string `json:"dataset"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("get_dataset_info", toolclient.KindBadRequest, err.Error())
	}
	if req.Dataset == "" {
		return toolclient.Failure("get_dataset_info", toolclient.KindBadRequest, "dataset is required")
	}
	info, err := c.service.GetDatasetInfo(ctx, req.Dataset)
	if err != nil {
		return toolclient.FailureFromError("get_dataset_info", err)
	}
	return toolclient.Success("get_dataset_info", info)
}

func (c *Client) cleanupMemory(ctx context.Context, args map[string]any) toolclient.Result {
	var req struct {
		RetentionDays int `json:"retention_days"`
	}
	if err := toolclient.DecodeArgs(args, &req); err != nil {
		return toolclient.Failure("cleanup_memory", toolclient.KindBadRequest, err.Error())
	}
	if req.RetentionDays <= 0 {
		req.RetentionDays = DefaultRetentionDays(models.DatasetScratchpad)
	}
	n, err := c.service.CleanupMemory(ctx, req.RetentionDays)
	if err != nil {
		return toolclient.FailureFromError("cleanup_memory", err)
	}
	return toolclient.Success("cleanup_memory", map[string]any{
		"deleted":        n,
		"retention_days": req.RetentionDays,
	})
}

// parseMetadata lifts a raw metadata map into the typed form. Known keys
// bind to fields, everything else lands in Extra. A wrongly typed known
// field is dropped rather than failing the ingest.
func parseMetadata(raw map[string]any) models.DocumentMetadata {
	var meta models.DocumentMetadata
	if len(raw) == 0 {
		return meta
	}
	if data, err := json.Marshal(raw); err == nil {
		// Partial fill: mismatched fields keep their zero value.
		_ = json.Unmarshal(data, &meta)
	}
	for key, value := range raw {
		switch key {
		case "type", "priority", "session_id", "source", "event_id", "project", "extra":
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]any)
			}
			meta.Extra[key] = value
		}
	}
	return meta
}
