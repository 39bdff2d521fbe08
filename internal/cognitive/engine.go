// Package cognitive runs background maintenance over sessions: rolling
// summaries into the document store, copying vision and audio events into
// long-lived memory, and rule-based housekeeping suggestions. Operations are
// invoked by the scheduled autonomous cycle or explicitly; each one is
// best-effort and never blocks the others.
package cognitive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yaya56vv/cortex/internal/llm"
	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/rag"
	"github.com/yaya56vv/cortex/pkg/models"
)

// Event types the engine writes to mark its own progress.
const (
	eventSessionSummary = "session_summary"
	eventVisionSync     = "vision_sync"
	eventAudioSync      = "audio_sync"
)

// summaryWindow bounds how many events feed one summary prompt.
const summaryWindow = 200

// Events is the timeline surface the engine reads and marks.
type Events interface {
	Append(ctx context.Context, event models.TimelineEvent) (*models.TimelineEvent, error)
	List(ctx context.Context, filter models.TimelineFilter) ([]models.TimelineEvent, error)
	Count(ctx context.Context, filter models.TimelineFilter) (int, error)
}

// Memory is the session store surface the engine appends transcripts to.
type Memory interface {
	AddMessage(ctx context.Context, sessionID string, msg models.SessionMessage) error
	List(ctx context.Context, category string) ([]models.SessionInfo, error)
}

// Documents is the document store surface summaries and descriptions land in.
type Documents interface {
	AddDocument(ctx context.Context, req rag.AddDocumentRequest) (*models.Document, error)
	ListDocuments(ctx context.Context, dataset string) ([]*models.Document, error)
	RetentionSweep(ctx context.Context) (map[models.Dataset]int, error)
}

// Generator is the model surface for summaries and vision descriptions.
type Generator interface {
	Generate(ctx context.Context, role models.LLMRole, req llm.GenerateRequest) (*llm.GenerateResult, error)
}

// Config assembles an Engine.
type Config struct {
	Events    Events
	Memory    Memory
	Documents Documents
	Models    Generator

	// SummarizeThreshold is the event count since the last summary that
	// triggers autosummarize. Zero means 50.
	SummarizeThreshold int

	// VisionSyncThreshold is the vision analysis count since the last sync
	// that triggers a sync suggestion. Zero means 3.
	VisionSyncThreshold int

	// ScratchpadThreshold is the scratchpad document count that triggers a
	// cleanup suggestion. Zero means 20.
	ScratchpadThreshold int

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Engine executes the cognitive operations. Safe for concurrent use.
type Engine struct {
	events    Events
	memory    Memory
	documents Documents
	models    Generator

	summarizeThreshold  int
	visionSyncThreshold int
	scratchpadThreshold int

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New assembles an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Events == nil || cfg.Memory == nil || cfg.Documents == nil || cfg.Models == nil {
		return nil, fmt.Errorf("cognitive: events, memory, documents and models are required")
	}
	if cfg.SummarizeThreshold <= 0 {
		cfg.SummarizeThreshold = 50
	}
	if cfg.VisionSyncThreshold <= 0 {
		cfg.VisionSyncThreshold = 3
	}
	if cfg.ScratchpadThreshold <= 0 {
		cfg.ScratchpadThreshold = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		events:              cfg.Events,
		memory:              cfg.Memory,
		documents:           cfg.Documents,
		models:              cfg.Models,
		summarizeThreshold:  cfg.SummarizeThreshold,
		visionSyncThreshold: cfg.VisionSyncThreshold,
		scratchpadThreshold: cfg.ScratchpadThreshold,
		logger:              cfg.Logger.With("component", "cognitive"),
		metrics:             cfg.Metrics,
	}, nil
}

// lastMarker returns the timestamp of the newest engine marker of the given
// type, zero when none exists.
func (e *Engine) lastMarker(ctx context.Context, sessionID, eventType string) (time.Time, error) {
	events, err := e.events.List(ctx, models.TimelineFilter{
		SessionID: sessionID,
		EventType: eventType,
		Limit:     1,
	})
	if err != nil {
		return time.Time{}, err
	}
	if len(events) == 0 {
		return time.Time{}, nil
	}
	return events[0].Timestamp, nil
}

// Autosummarize distills the session's recent activity into one document in
// the context_flow dataset when enough has happened since the last summary.
// Returns whether a summary was written.
func (e *Engine) Autosummarize(ctx context.Context, sessionID string, force bool) (bool, error) {
	since, err := e.lastMarker(ctx, sessionID, eventSessionSummary)
	if err != nil {
		return false, e.fail("autosummarize", err)
	}
	count, err := e.events.Count(ctx, models.TimelineFilter{SessionID: sessionID, Since: since})
	if err != nil {
		return false, e.fail("autosummarize", err)
	}
	if !force && count <= e.summarizeThreshold {
		return false, nil
	}
	if count == 0 {
		return false, nil
	}

	window, err := e.events.List(ctx, models.TimelineFilter{
		SessionID: sessionID,
		Since:     since,
		Limit:     summaryWindow,
	})
	if err != nil {
		return false, e.fail("autosummarize", err)
	}
	if len(window) == 0 {
		return false, nil
	}

	// List is newest first; the prompt reads oldest to newest.
	t1 := window[0].Timestamp
	t0 := window[len(window)-1].Timestamp
	var b strings.Builder
	for i := len(window) - 1; i >= 0; i-- {
		ev := window[i]
		fmt.Fprintf(&b, "[%s] %s", ev.Timestamp.Format(time.RFC3339), ev.EventType)
		if msg, ok := ev.Data["message"].(string); ok && msg != "" {
			b.WriteString(": " + msg)
		}
		b.WriteString("\n")
	}

	res, err := e.models.Generate(ctx, models.RoleReasoning, llm.GenerateRequest{
		System: "Tu résumes l'activité d'une session d'agent. Réponds avec un résumé concis des faits et décisions, sans commentaire.",
		Prompt: b.String(),
	})
	if err != nil {
		return false, e.fail("autosummarize", err)
	}

	_, err = e.documents.AddDocument(ctx, rag.AddDocumentRequest{
		Dataset:  string(models.DatasetContextFlow),
		Filename: fmt.Sprintf("summary_%s_%s.md", sessionID, t1.Format("20060102T150405")),
		Content:  res.Text,
		Metadata: models.DocumentMetadata{
			Type:      "context_data",
			SessionID: sessionID,
			Source:    "autosummarize",
			Extra: map[string]any{
				"range_start": t0.Format(time.RFC3339),
				"range_end":   t1.Format(time.RFC3339),
			},
		},
	})
	if err != nil {
		return false, e.fail("autosummarize", err)
	}

	_, err = e.events.Append(ctx, models.TimelineEvent{
		SessionID: sessionID,
		EventType: eventSessionSummary,
		Data:      map[string]any{"events": len(window)},
	})
	if err != nil {
		return true, e.fail("autosummarize", err)
	}
	e.done("autosummarize")
	e.logger.Info("session summarized", "session_id", sessionID, "events", len(window))
	return true, nil
}

// SyncVisionToRAG copies vision analyses newer than the last sync into the
// agent_memory dataset, deriving a short description for each via the vision
// model. Returns how many documents were written.
func (e *Engine) SyncVisionToRAG(ctx context.Context, sessionID string) (int, error) {
	since, err := e.lastMarker(ctx, sessionID, eventVisionSync)
	if err != nil {
		return 0, e.fail("sync_vision_to_rag", err)
	}
	analyses, err := e.events.List(ctx, models.TimelineFilter{
		SessionID: sessionID,
		EventType: "vision_analysis",
		Since:     since,
	})
	if err != nil {
		return 0, e.fail("sync_vision_to_rag", err)
	}
	if len(analyses) == 0 {
		return 0, nil
	}

	synced := 0
	for _, ev := range analyses {
		description := e.describeVision(ctx, ev)
		if description == "" {
			continue
		}
		_, err := e.documents.AddDocument(ctx, rag.AddDocumentRequest{
			Dataset:  string(models.DatasetAgentMemory),
			Filename: fmt.Sprintf("vision_%d.md", ev.ID),
			Content:  description,
			Metadata: models.DocumentMetadata{
				Type:      "learning_data",
				SessionID: sessionID,
				Source:    "vision_sync",
				EventID:   ev.ID,
			},
		})
		if err != nil {
			e.logger.Warn("vision document write failed", "event_id", ev.ID, "error", err)
			continue
		}
		synced++
	}

	if synced > 0 {
		_, err = e.events.Append(ctx, models.TimelineEvent{
			SessionID: sessionID,
			EventType: eventVisionSync,
			Modality:  models.ModalityText,
			Data:      map[string]any{"synced": synced},
		})
		if err != nil {
			return synced, e.fail("sync_vision_to_rag", err)
		}
	}
	e.done("sync_vision_to_rag")
	return synced, nil
}

// describeVision derives a short description for one vision event. The raw
// analysis carried by the event is the fallback when no model is configured
// or the model fails.
func (e *Engine) describeVision(ctx context.Context, ev models.TimelineEvent) string {
	raw, _ := ev.Data["analysis"].(string)
	if raw == "" {
		raw, _ = ev.Data["description"].(string)
	}
	if raw == "" {
		return ""
	}
	if e.models == nil {
		return raw
	}
	res, err := e.models.Generate(ctx, models.RoleVision, llm.GenerateRequest{
		System: "Résume cette analyse d'écran en une ou deux phrases factuelles.",
		Prompt: raw,
	})
	if err != nil {
		e.logger.Warn("vision description failed, keeping raw analysis", "event_id", ev.ID, "error", err)
		return raw
	}
	return res.Text
}

// SyncAudioToMemory appends transcriptions newer than the last sync to the
// session as user messages. Returns how many messages were written.
func (e *Engine) SyncAudioToMemory(ctx context.Context, sessionID string) (int, error) {
	since, err := e.lastMarker(ctx, sessionID, eventAudioSync)
	if err != nil {
		return 0, e.fail("sync_audio_to_memory", err)
	}
	transcriptions, err := e.events.List(ctx, models.TimelineFilter{
		SessionID: sessionID,
		EventType: "audio_transcription",
		Since:     since,
	})
	if err != nil {
		return 0, e.fail("sync_audio_to_memory", err)
	}
	if len(transcriptions) == 0 {
		return 0, nil
	}

	synced := 0
	for i := len(transcriptions) - 1; i >= 0; i-- {
		ev := transcriptions[i]
		text, _ := ev.Data["transcript"].(string)
		if text == "" {
			text, _ = ev.Data["text"].(string)
		}
		if text == "" {
			continue
		}
		err := e.memory.AddMessage(ctx, sessionID, models.SessionMessage{
			Role:      "user",
			Content:   text,
			Timestamp: ev.Timestamp,
			Metadata:  map[string]any{"source": "audio", "event_id": ev.ID},
		})
		if err != nil {
			e.logger.Warn("audio message write failed", "event_id", ev.ID, "error", err)
			continue
		}
		synced++
	}

	if synced > 0 {
		_, err = e.events.Append(ctx, models.TimelineEvent{
			SessionID: sessionID,
			EventType: eventAudioSync,
			Modality:  models.ModalityText,
			Data:      map[string]any{"synced": synced},
		})
		if err != nil {
			return synced, e.fail("sync_audio_to_memory", err)
		}
	}
	e.done("sync_audio_to_memory")
	return synced, nil
}

// ProactiveSuggestions applies the housekeeping rules and returns the actions
// worth taking. Rule evaluation is local; no model is consulted.
func (e *Engine) ProactiveSuggestions(ctx context.Context, sessionID string) ([]models.Suggestion, error) {
	var suggestions []models.Suggestion

	since, err := e.lastMarker(ctx, sessionID, eventSessionSummary)
	if err != nil {
		return nil, e.fail("proactive_suggestions", err)
	}
	count, err := e.events.Count(ctx, models.TimelineFilter{SessionID: sessionID, Since: since})
	if err != nil {
		return nil, e.fail("proactive_suggestions", err)
	}
	if count > e.summarizeThreshold {
		suggestions = append(suggestions, models.Suggestion{
			Type:      "summarize_session",
			Reason:    fmt.Sprintf("%d events since the last summary", count),
			SessionID: sessionID,
		})
	}

	visionSince, err := e.lastMarker(ctx, sessionID, eventVisionSync)
	if err != nil {
		return suggestions, e.fail("proactive_suggestions", err)
	}
	visionCount, err := e.events.Count(ctx, models.TimelineFilter{
		SessionID: sessionID,
		EventType: "vision_analysis",
		Since:     visionSince,
	})
	if err != nil {
		return suggestions, e.fail("proactive_suggestions", err)
	}
	if visionCount > e.visionSyncThreshold {
		suggestions = append(suggestions, models.Suggestion{
			Type:      "sync_vision_to_rag",
			Reason:    fmt.Sprintf("%d vision analyses since the last sync", visionCount),
			SessionID: sessionID,
		})
	}

	docs, err := e.documents.ListDocuments(ctx, string(models.DatasetScratchpad))
	if err != nil {
		return suggestions, e.fail("proactive_suggestions", err)
	}
	if len(docs) > e.scratchpadThreshold {
		suggestions = append(suggestions, models.Suggestion{
			Type:      "cleanup_scratchpad",
			Reason:    fmt.Sprintf("scratchpad holds %d documents", len(docs)),
			SessionID: sessionID,
		})
	}

	e.done("proactive_suggestions")
	return suggestions, nil
}

// RunAutonomousCycle runs every operation in order, collecting failures
// instead of stopping on them.
func (e *Engine) RunAutonomousCycle(ctx context.Context, sessionID string) *models.CycleReport {
	report := &models.CycleReport{}

	summarized, err := e.Autosummarize(ctx, sessionID, false)
	report.Summarized = summarized
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("autosummarize: %v", err))
	}

	vision, err := e.SyncVisionToRAG(ctx, sessionID)
	report.VisionSynced = vision
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("sync_vision_to_rag: %v", err))
	}

	audio, err := e.SyncAudioToMemory(ctx, sessionID)
	report.AudioSynced = audio
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("sync_audio_to_memory: %v", err))
	}

	suggestions, err := e.ProactiveSuggestions(ctx, sessionID)
	report.Suggestions = suggestions
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("proactive_suggestions: %v", err))
	}

	e.logger.Info("autonomous cycle complete",
		"session_id", sessionID,
		"summarized", report.Summarized,
		"vision_synced", report.VisionSynced,
		"audio_synced", report.AudioSynced,
		"suggestions", len(report.Suggestions),
		"errors", len(report.Errors))
	return report
}

// ActiveSessions lists sessions touched since the cutoff, for the scheduler
// to cycle over.
func (e *Engine) ActiveSessions(ctx context.Context, since time.Time) ([]string, error) {
	infos, err := e.memory.List(ctx, "active")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, info := range infos {
		if info.UpdatedAt.After(since) {
			ids = append(ids, info.SessionID)
		}
	}
	return ids, nil
}

// Sweep applies dataset retention across the document store.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	deleted, err := e.documents.RetentionSweep(ctx)
	if err != nil {
		return 0, e.fail("retention_sweep", err)
	}
	total := 0
	for _, n := range deleted {
		total += n
	}
	if total > 0 {
		e.logger.Info("retention sweep complete", "deleted", total)
	}
	e.done("retention_sweep")
	return total, nil
}

func (e *Engine) fail(action string, err error) error {
	if e.metrics != nil {
		e.metrics.RecordCognitiveAction(action, "error")
	}
	return err
}

func (e *Engine) done(action string) {
	if e.metrics != nil {
		e.metrics.RecordCognitiveAction(action, "success")
	}
}
