package cognitive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yaya56vv/cortex/internal/llm"
	"github.com/yaya56vv/cortex/internal/rag"
	"github.com/yaya56vv/cortex/pkg/models"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []models.TimelineEvent
	nextID int64
}

func (f *fakeEvents) Append(_ context.Context, event models.TimelineEvent) (*models.TimelineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	event.ID = f.nextID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	f.events = append(f.events, event)
	return &event, nil
}

func (f *fakeEvents) List(_ context.Context, filter models.TimelineFilter) ([]models.TimelineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TimelineEvent
	for i := len(f.events) - 1; i >= 0; i-- {
		ev := f.events[i]
		if filter.SessionID != "" && ev.SessionID != filter.SessionID {
			continue
		}
		if filter.EventType != "" && ev.EventType != filter.EventType {
			continue
		}
		if !filter.Since.IsZero() && !ev.Timestamp.After(filter.Since) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEvents) Count(ctx context.Context, filter models.TimelineFilter) (int, error) {
	events, err := f.List(ctx, filter)
	return len(events), err
}

func (f *fakeEvents) seed(sessionID, eventType string, age time.Duration, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.events = append(f.events, models.TimelineEvent{
		ID:        f.nextID,
		Timestamp: time.Now().UTC().Add(-age),
		SessionID: sessionID,
		EventType: eventType,
		Data:      data,
	})
}

type fakeSessionStore struct {
	mu       sync.Mutex
	messages map[string][]models.SessionMessage
	infos    []models.SessionInfo
}

func (f *fakeSessionStore) AddMessage(_ context.Context, sessionID string, msg models.SessionMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages == nil {
		f.messages = make(map[string][]models.SessionMessage)
	}
	f.messages[sessionID] = append(f.messages[sessionID], msg)
	return nil
}

func (f *fakeSessionStore) List(context.Context, string) ([]models.SessionInfo, error) {
	return f.infos, nil
}

type fakeDocStore struct {
	mu      sync.Mutex
	added   []rag.AddDocumentRequest
	listed  map[string][]*models.Document
	addErr  error
	swept   map[models.Dataset]int
	sweeper int
}

func (f *fakeDocStore) AddDocument(_ context.Context, req rag.AddDocumentRequest) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, req)
	return &models.Document{ID: req.Filename}, nil
}

func (f *fakeDocStore) ListDocuments(_ context.Context, dataset string) ([]*models.Document, error) {
	return f.listed[dataset], nil
}

func (f *fakeDocStore) RetentionSweep(context.Context) (map[models.Dataset]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeper++
	return f.swept, nil
}

type fakeModels struct {
	text string
	err  error
}

func (f *fakeModels) Generate(_ context.Context, _ models.LLMRole, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	text := f.text
	if text == "" {
		text = "résumé: " + req.Prompt[:min(20, len(req.Prompt))]
	}
	return &llm.GenerateResult{Text: text, Model: "test", Provider: "fake"}, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func newTestEngine(t *testing.T, ev *fakeEvents, mem *fakeSessionStore, docs *fakeDocStore, gen Generator) *Engine {
	t.Helper()
	if gen == nil {
		gen = &fakeModels{text: "un résumé"}
	}
	e, err := New(Config{Events: ev, Memory: mem, Documents: docs, Models: gen})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestAutosummarizeBelowThreshold(t *testing.T) {
	ev := &fakeEvents{}
	docs := &fakeDocStore{}
	e := newTestEngine(t, ev, &fakeSessionStore{}, docs, nil)

	for i := 0; i < 10; i++ {
		ev.seed("s1", "step_start", time.Minute, nil)
	}
	did, err := e.Autosummarize(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("Autosummarize: %v", err)
	}
	if did || len(docs.added) != 0 {
		t.Errorf("summary written below threshold: did=%v docs=%d", did, len(docs.added))
	}
}

func TestAutosummarizeForce(t *testing.T) {
	ev := &fakeEvents{}
	docs := &fakeDocStore{}
	e := newTestEngine(t, ev, &fakeSessionStore{}, docs, &fakeModels{text: "la session a traité trois fichiers"})

	ev.seed("s1", "step_start", 2*time.Minute, map[string]any{"message": "lecture"})
	ev.seed("s1", "step_end", time.Minute, nil)

	did, err := e.Autosummarize(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("Autosummarize: %v", err)
	}
	if !did {
		t.Fatal("forced summary did not run")
	}
	if len(docs.added) != 1 {
		t.Fatalf("docs added = %d, want 1", len(docs.added))
	}
	doc := docs.added[0]
	if doc.Dataset != string(models.DatasetContextFlow) {
		t.Errorf("dataset = %s, want context_flow", doc.Dataset)
	}
	if doc.Metadata.Type != "context_data" || doc.Metadata.SessionID != "s1" {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Content != "la session a traité trois fichiers" {
		t.Errorf("content = %q", doc.Content)
	}

	markers, _ := ev.List(context.Background(), models.TimelineFilter{EventType: eventSessionSummary})
	if len(markers) != 1 {
		t.Errorf("summary markers = %d, want 1", len(markers))
	}
}

func TestAutosummarizeCountsSinceLastSummary(t *testing.T) {
	ev := &fakeEvents{}
	docs := &fakeDocStore{}
	e := newTestEngine(t, ev, &fakeSessionStore{}, docs, nil)

	// Plenty of old events behind a summary marker, only a few after it.
	for i := 0; i < 80; i++ {
		ev.seed("s1", "step_start", 2*time.Hour, nil)
	}
	ev.seed("s1", eventSessionSummary, time.Hour, nil)
	for i := 0; i < 5; i++ {
		ev.seed("s1", "step_start", time.Minute, nil)
	}

	did, err := e.Autosummarize(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("Autosummarize: %v", err)
	}
	if did {
		t.Error("summary ran although only 5 events followed the last one")
	}
}

func TestSyncVisionToRAG(t *testing.T) {
	ev := &fakeEvents{}
	docs := &fakeDocStore{}
	e := newTestEngine(t, ev, &fakeSessionStore{}, docs, &fakeModels{text: "l'éditeur affiche main.go"})

	ev.seed("s1", "vision_analysis", 3*time.Minute, map[string]any{"analysis": "capture d'écran de l'éditeur"})
	ev.seed("s1", "vision_analysis", time.Minute, map[string]any{"analysis": "terminal avec des tests"})
	ev.seed("s1", "audio_transcription", time.Minute, map[string]any{"transcript": "ignore-moi"})

	n, err := e.SyncVisionToRAG(context.Background(), "s1")
	if err != nil {
		t.Fatalf("SyncVisionToRAG: %v", err)
	}
	if n != 2 || len(docs.added) != 2 {
		t.Fatalf("synced = %d, docs = %d, want 2/2", n, len(docs.added))
	}
	for _, doc := range docs.added {
		if doc.Dataset != string(models.DatasetAgentMemory) {
			t.Errorf("dataset = %s, want agent_memory", doc.Dataset)
		}
		if doc.Metadata.EventID == 0 || doc.Metadata.Source != "vision_sync" {
			t.Errorf("metadata = %+v", doc.Metadata)
		}
	}

	// A second pass finds nothing new.
	n, err = e.SyncVisionToRAG(context.Background(), "s1")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if n != 0 {
		t.Errorf("second sync copied %d events, want 0", n)
	}
}

func TestSyncVisionKeepsRawOnModelFailure(t *testing.T) {
	ev := &fakeEvents{}
	docs := &fakeDocStore{}
	e := newTestEngine(t, ev, &fakeSessionStore{}, docs, &fakeModels{err: errors.New("model down")})

	ev.seed("s1", "vision_analysis", time.Minute, map[string]any{"analysis": "bureau avec deux fenêtres"})

	n, err := e.SyncVisionToRAG(context.Background(), "s1")
	if err != nil {
		t.Fatalf("SyncVisionToRAG: %v", err)
	}
	if n != 1 {
		t.Fatalf("synced = %d, want 1", n)
	}
	if docs.added[0].Content != "bureau avec deux fenêtres" {
		t.Errorf("content = %q, want raw analysis", docs.added[0].Content)
	}
}

func TestSyncAudioToMemory(t *testing.T) {
	ev := &fakeEvents{}
	mem := &fakeSessionStore{}
	e := newTestEngine(t, ev, mem, &fakeDocStore{}, nil)

	ev.seed("s1", "audio_transcription", 2*time.Minute, map[string]any{"transcript": "rappelle-moi la réunion"})
	ev.seed("s1", "audio_transcription", time.Minute, map[string]any{"text": "à quinze heures"})
	ev.seed("s1", "audio_transcription", time.Minute, map[string]any{})

	n, err := e.SyncAudioToMemory(context.Background(), "s1")
	if err != nil {
		t.Fatalf("SyncAudioToMemory: %v", err)
	}
	if n != 2 {
		t.Fatalf("synced = %d, want 2", n)
	}
	msgs := mem.messages["s1"]
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	for _, msg := range msgs {
		if msg.Role != "user" {
			t.Errorf("role = %s, want user", msg.Role)
		}
		if msg.Metadata["source"] != "audio" || msg.Metadata["event_id"] == nil {
			t.Errorf("metadata = %v", msg.Metadata)
		}
	}
	if msgs[0].Content != "rappelle-moi la réunion" {
		t.Errorf("messages out of order: first = %q", msgs[0].Content)
	}
}

func TestProactiveSuggestions(t *testing.T) {
	ev := &fakeEvents{}
	docs := &fakeDocStore{listed: map[string][]*models.Document{}}
	e := newTestEngine(t, ev, &fakeSessionStore{}, docs, nil)

	for i := 0; i < 60; i++ {
		ev.seed("s1", "step_start", time.Minute, nil)
	}
	for i := 0; i < 5; i++ {
		ev.seed("s1", "vision_analysis", time.Minute, nil)
	}
	pad := make([]*models.Document, 25)
	for i := range pad {
		pad[i] = &models.Document{ID: "note"}
	}
	docs.listed[string(models.DatasetScratchpad)] = pad

	got, err := e.ProactiveSuggestions(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ProactiveSuggestions: %v", err)
	}
	types := make(map[string]bool, len(got))
	for _, s := range got {
		types[s.Type] = true
		if s.SessionID != "s1" || s.Reason == "" {
			t.Errorf("suggestion = %+v", s)
		}
	}
	for _, want := range []string{"summarize_session", "sync_vision_to_rag", "cleanup_scratchpad"} {
		if !types[want] {
			t.Errorf("missing suggestion %s in %v", want, got)
		}
	}
}

func TestProactiveSuggestionsQuietSession(t *testing.T) {
	e := newTestEngine(t, &fakeEvents{}, &fakeSessionStore{}, &fakeDocStore{}, nil)
	got, err := e.ProactiveSuggestions(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ProactiveSuggestions: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("quiet session produced %v", got)
	}
}

func TestRunAutonomousCycleBestEffort(t *testing.T) {
	ev := &fakeEvents{}
	mem := &fakeSessionStore{}
	docs := &fakeDocStore{addErr: errors.New("disk full")}
	e := newTestEngine(t, ev, mem, docs, nil)

	for i := 0; i < 60; i++ {
		ev.seed("s1", "step_start", time.Minute, nil)
	}
	ev.seed("s1", "audio_transcription", time.Minute, map[string]any{"transcript": "bonjour"})

	report := e.RunAutonomousCycle(context.Background(), "s1")
	if report.Summarized {
		t.Error("summary reported despite failing document store")
	}
	if len(report.Errors) == 0 {
		t.Error("failing summary left no error in the report")
	}
	// The audio sync still ran.
	if report.AudioSynced != 1 {
		t.Errorf("audio synced = %d, want 1", report.AudioSynced)
	}
	if len(mem.messages["s1"]) != 1 {
		t.Errorf("memory messages = %d, want 1", len(mem.messages["s1"]))
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"every 30m", false},
		{"every 1h", false},
		{"every 5s", true},
		{"at 03:00", false},
		{"at 25:00", true},
		{"cron 0 3 * * *", false},
		{"cron not-cron", true},
		{"whenever", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseSchedule(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
	}
}

func TestScheduleNext(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)

	every, _ := ParseSchedule("every 30m")
	if got := every.Next(now); !got.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("every Next = %v", got)
	}

	at, _ := ParseSchedule("at 03:00")
	want := time.Date(2026, 8, 27, 3, 0, 0, 0, time.UTC)
	if got := at.Next(now); !got.Equal(want) {
		t.Errorf("at Next = %v, want %v (next day)", got, want)
	}
	beforeThree := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)
	sameDay := time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC)
	if got := at.Next(beforeThree); !got.Equal(sameDay) {
		t.Errorf("at Next before 03:00 = %v, want %v", got, sameDay)
	}

	cronSched, _ := ParseSchedule("cron 0 3 * * *")
	if got := cronSched.Next(now); got.Hour() != 3 || got.Minute() != 0 {
		t.Errorf("cron Next = %v, want a 03:00 tick", got)
	}
}

func TestSchedulerTick(t *testing.T) {
	ev := &fakeEvents{}
	mem := &fakeSessionStore{infos: []models.SessionInfo{
		{SessionID: "fresh", UpdatedAt: time.Now().Add(-time.Hour)},
		{SessionID: "stale", UpdatedAt: time.Now().Add(-48 * time.Hour)},
	}}
	docs := &fakeDocStore{}
	e := newTestEngine(t, ev, mem, docs, nil)

	ev.seed("fresh", "audio_transcription", time.Minute, map[string]any{"transcript": "note vocale"})
	ev.seed("stale", "audio_transcription", time.Minute, map[string]any{"transcript": "vieux message"})

	s, err := NewScheduler(e, "every 30m", nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Tick(context.Background())

	if len(mem.messages["fresh"]) != 1 {
		t.Errorf("fresh session audio not synced: %v", mem.messages)
	}
	if len(mem.messages["stale"]) != 0 {
		t.Error("stale session was cycled")
	}
	if docs.sweeper != 1 {
		t.Errorf("retention sweep ran %d times, want 1", docs.sweeper)
	}
}

func TestActiveSessions(t *testing.T) {
	mem := &fakeSessionStore{infos: []models.SessionInfo{
		{SessionID: "a", UpdatedAt: time.Now().Add(-time.Minute)},
		{SessionID: "b", UpdatedAt: time.Now().Add(-72 * time.Hour)},
	}}
	e := newTestEngine(t, &fakeEvents{}, mem, &fakeDocStore{}, nil)

	got, err := e.ActiveSessions(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("ActiveSessions = %v, want [a]", got)
	}
}
