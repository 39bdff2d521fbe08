// Package timeline implements the append-only, modality-tagged event log
// every kernel component writes through. Events live in the shared relational
// store (timeline_events); appends serialize behind a short mutex and fan out
// to live subscribers, reads run lock-free against the database snapshot.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/storage"
	"github.com/yaya56vv/cortex/pkg/models"
)

const (
	// defaultSessionCap bounds rows per session; the oldest rows are trimmed
	// past it without notifying callers.
	defaultSessionCap = 1_000_000

	defaultListLimit = 100
	maxListLimit     = 1000
)

// Config assembles a Log.
type Config struct {
	// DB is the shared relational store. Required.
	DB *storage.DB

	// SessionCap overrides the per-session row bound. Default 1e6.
	SessionCap int

	// Logger receives timeline logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics counts appended events per modality. Optional.
	Metrics *observability.Metrics
}

// Log is the process-wide timeline.
type Log struct {
	db      *storage.DB
	logger  *slog.Logger
	metrics *observability.Metrics
	cap     int
	hub     *hub

	// mu serializes appends; counts carries lazily loaded per-session row
	// counts so the cap check does not re-count on every write.
	mu     sync.Mutex
	counts map[string]int

	now func() time.Time
}

// New opens the timeline over the shared store.
func New(cfg Config) (*Log, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("timeline: db is required")
	}
	if cfg.SessionCap <= 0 {
		cfg.SessionCap = defaultSessionCap
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Log{
		db:      cfg.DB,
		logger:  cfg.Logger.With("component", "timeline"),
		metrics: cfg.Metrics,
		cap:     cfg.SessionCap,
		hub:     newHub(),
		counts:  make(map[string]int),
		now:     time.Now,
	}, nil
}

// DeriveModality tags an event from its type: audio, vision/image, document
// and system tokens map to their modalities, anything else is text.
func DeriveModality(eventType string) models.Modality {
	t := strings.ToLower(eventType)
	switch {
	case strings.Contains(t, "audio"):
		return models.ModalityAudio
	case strings.Contains(t, "vision"), strings.Contains(t, "image"):
		return models.ModalityVision
	case strings.Contains(t, "document"):
		return models.ModalityDocuments
	case strings.Contains(t, "system"):
		return models.ModalitySystem
	default:
		return models.ModalityText
	}
}

// Append records one event and fans it out to subscribers. The stored event
// comes back with its id, timestamp and modality filled in.
func (l *Log) Append(ctx context.Context, event models.TimelineEvent) (*models.TimelineEvent, error) {
	if event.EventType == "" {
		return nil, fmt.Errorf("timeline: event type is required")
	}
	if event.SessionID == "" {
		event.SessionID = "default"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.Timestamp = event.Timestamp.UTC()
	if !event.Modality.Valid() {
		event.Modality = DeriveModality(event.EventType)
	}

	data, err := encodeMap(event.Data)
	if err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}
	metadata, err := encodeMap(event.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode event metadata: %w", err)
	}

	l.mu.Lock()
	id, err := l.insert(ctx, &event, data, metadata)
	if err == nil {
		err = l.bumpAndTrim(ctx, event.SessionID)
	}
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	event.ID = id

	if l.metrics != nil {
		l.metrics.RecordTimelineEvent(string(event.Modality))
	}
	l.hub.publish(event)
	return &event, nil
}

func (l *Log) insert(ctx context.Context, event *models.TimelineEvent, data, metadata string) (int64, error) {
	const insertSQL = `
		INSERT INTO timeline_events (ts, session_id, event_type, modality, data, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`
	args := []any{event.Timestamp, event.SessionID, event.EventType, string(event.Modality), data, metadata}

	if l.db.Dialect == storage.DialectPostgres {
		var id int64
		err := l.db.SQL.QueryRowContext(ctx, l.db.Rebind(insertSQL+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("append timeline event: %w", err)
		}
		return id, nil
	}
	res, err := l.db.SQL.ExecContext(ctx, insertSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("append timeline event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("timeline event id: %w", err)
	}
	return id, nil
}

// bumpAndTrim maintains the per-session row count and drops the oldest rows
// once a session exceeds the cap. Callers hold l.mu.
func (l *Log) bumpAndTrim(ctx context.Context, sessionID string) error {
	count, known := l.counts[sessionID]
	if !known {
		err := l.db.SQL.QueryRowContext(ctx,
			l.db.Rebind(`SELECT COUNT(*) FROM timeline_events WHERE session_id = ?`),
			sessionID,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("count timeline events: %w", err)
		}
		l.counts[sessionID] = count
		if count <= l.cap {
			return nil
		}
	} else {
		count++
		l.counts[sessionID] = count
		if count <= l.cap {
			return nil
		}
	}

	// Keep the cap newest rows: find the oldest survivor's id and delete
	// everything before it.
	var cutoff int64
	err := l.db.SQL.QueryRowContext(ctx,
		l.db.Rebind(`SELECT id FROM timeline_events WHERE session_id = ? ORDER BY id DESC LIMIT 1 OFFSET ?`),
		sessionID, l.cap-1,
	).Scan(&cutoff)
	if err != nil {
		return fmt.Errorf("find trim cutoff: %w", err)
	}
	res, err := l.db.SQL.ExecContext(ctx,
		l.db.Rebind(`DELETE FROM timeline_events WHERE session_id = ? AND id < ?`),
		sessionID, cutoff,
	)
	if err != nil {
		return fmt.Errorf("trim timeline: %w", err)
	}
	if deleted, err := res.RowsAffected(); err == nil && deleted > 0 {
		l.counts[sessionID] = count - int(deleted)
		l.logger.Debug("timeline trimmed", "session_id", sessionID, "deleted", deleted)
	}
	return nil
}

// List returns events matching the filter, newest first. A zero limit means
// the default page of 100; limits are clamped to 1000.
func (l *Log) List(ctx context.Context, filter models.TimelineFilter) ([]models.TimelineEvent, error) {
	where, args := buildWhere(filter)
	query := `SELECT id, ts, session_id, event_type, modality, data, metadata FROM timeline_events` + where

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.SQL.QueryContext(ctx, l.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := []models.TimelineEvent{}
	for rows.Next() {
		var (
			event    models.TimelineEvent
			modality string
			data     string
			metadata string
		)
		err := rows.Scan(&event.ID, &event.Timestamp, &event.SessionID, &event.EventType, &modality, &data, &metadata)
		if err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Modality = models.Modality(modality)
		event.Timestamp = event.Timestamp.UTC()
		if event.Data, err = decodeMap(data); err != nil {
			return nil, fmt.Errorf("decode event %d data: %w", event.ID, err)
		}
		if event.Metadata, err = decodeMap(metadata); err != nil {
			return nil, fmt.Errorf("decode event %d metadata: %w", event.ID, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	return events, nil
}

// Count returns how many events match the filter; the filter's limit is
// ignored.
func (l *Log) Count(ctx context.Context, filter models.TimelineFilter) (int, error) {
	where, args := buildWhere(filter)
	var count int
	err := l.db.SQL.QueryRowContext(ctx,
		l.db.Rebind(`SELECT COUNT(*) FROM timeline_events`+where), args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count timeline events: %w", err)
	}
	return count, nil
}

// Subscribe registers a live feed of appended events. An empty sessionID
// receives every session. The cancel func must be called when done.
func (l *Log) Subscribe(sessionID string) (<-chan models.TimelineEvent, func()) {
	return l.hub.subscribe(sessionID)
}

func buildWhere(filter models.TimelineFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Modality != "" {
		clauses = append(clauses, "modality = ?")
		args = append(args, string(filter.Modality))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "ts >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func encodeMap(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMap(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}
