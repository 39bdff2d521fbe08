// Package contextbuilder assembles the SuperContext: a single bounded object
// holding everything the planner gets to see about one user message.
//
// Sources (session memory, retrieval, and the optional vision/audio/system
// snapshots) are fanned out in parallel, each under its own deadline. A slow
// or failing source degrades to an error section; it never aborts the build.
package contextbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"github.com/yaya56vv/cortex/internal/intent"
	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/rag"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

const (
	defaultSoftTimeout    = 2 * time.Second
	defaultHardTimeout    = 5 * time.Second
	defaultMaxSourceBytes = 4096
	defaultHistoryLimit   = 5

	// audioEventWindow is how many recent audio events the audio section
	// renders.
	audioEventWindow = 3
)

// MemorySource is the slice of the session store the builder reads.
type MemorySource interface {
	Context(ctx context.Context, sessionID string, maxMessages int) (string, error)
	Search(ctx context.Context, query, sessionID string, topK int) ([]models.MemorySearchResult, error)
}

// RetrievalSource is the slice of the document store the builder reads.
type RetrievalSource interface {
	Query(ctx context.Context, req rag.QueryRequest) ([]*models.SearchResult, error)
}

// EventSource is the slice of the timeline the builder reads.
type EventSource interface {
	List(ctx context.Context, filter models.TimelineFilter) ([]models.TimelineEvent, error)
}

// Config assembles a Builder.
type Config struct {
	// Memory serves conversation context and similarity search. Required.
	Memory MemorySource

	// Retrieval serves per-dataset document queries. Required.
	Retrieval RetrievalSource

	// Events serves recent timeline events for the audio section. Optional.
	Events EventSource

	// Registry resolves the vision and system tool clients. Optional; when
	// nil those sections are skipped even if the profile asks for them.
	Registry *toolclient.Registry

	// SoftTimeout bounds each individual source fetch.
	SoftTimeout time.Duration

	// HardTimeout bounds the whole assembly.
	HardTimeout time.Duration

	// MaxSourceBytes caps each section's content before truncation.
	MaxSourceBytes int

	// HistoryLimit is the default conversation tail length when the profile
	// names none.
	HistoryLimit int

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Builder assembles SuperContexts. It is stateless across builds and safe
// for concurrent use.
type Builder struct {
	memory    MemorySource
	retrieval RetrievalSource
	events    EventSource
	registry  *toolclient.Registry

	soft     time.Duration
	hard     time.Duration
	maxBytes int
	history  int

	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// New assembles a Builder.
func New(cfg Config) (*Builder, error) {
	if cfg.Memory == nil {
		return nil, fmt.Errorf("contextbuilder: memory source is required")
	}
	if cfg.Retrieval == nil {
		return nil, fmt.Errorf("contextbuilder: retrieval source is required")
	}
	if cfg.SoftTimeout <= 0 {
		cfg.SoftTimeout = defaultSoftTimeout
	}
	if cfg.HardTimeout < cfg.SoftTimeout {
		cfg.HardTimeout = defaultHardTimeout
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = defaultMaxSourceBytes
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Builder{
		memory:    cfg.Memory,
		retrieval: cfg.Retrieval,
		events:    cfg.Events,
		registry:  cfg.Registry,
		soft:      cfg.SoftTimeout,
		hard:      cfg.HardTimeout,
		maxBytes:  cfg.MaxSourceBytes,
		history:   cfg.HistoryLimit,
		logger:    cfg.Logger.With("component", "contextbuilder"),
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}, nil
}

// sourceResult is one section coming back from the fan-out.
type sourceResult struct {
	name    string
	section *models.ContextSection
}

// Build assembles the SuperContext for one user message under the profile's
// source selection. Every source error is recorded in its section; Build
// itself never fails.
func (b *Builder) Build(ctx context.Context, userMessage, sessionID string, profile intent.Profile) *models.SuperContext {
	if b.tracer != nil {
		var span trace.Span
		ctx, span = b.tracer.TraceContextBuild(ctx, sessionID)
		defer span.End()
	}

	ctx, cancel := context.WithTimeout(ctx, b.hard)
	defer cancel()

	history := profile.MemoryMessages
	if history <= 0 {
		history = b.history
	}

	type fetch struct {
		name string
		run  func(context.Context) (string, error)
	}
	fetches := []fetch{
		{"memory", func(ctx context.Context) (string, error) {
			return b.memory.Context(ctx, sessionID, history)
		}},
	}
	if profile.SearchTopK > 0 {
		fetches = append(fetches, fetch{"memory_search", func(ctx context.Context) (string, error) {
			return b.fetchMemorySearch(ctx, userMessage, sessionID, profile.SearchTopK)
		}})
	}
	datasets := make([]models.Dataset, 0, len(profile.RAGTopK))
	for dataset := range profile.RAGTopK {
		datasets = append(datasets, dataset)
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i] < datasets[j] })
	for _, dataset := range datasets {
		dataset, topK := dataset, profile.RAGTopK[dataset]
		fetches = append(fetches, fetch{"rag:" + string(dataset), func(ctx context.Context) (string, error) {
			return b.fetchRAG(ctx, userMessage, dataset, topK)
		}})
	}
	if profile.Vision && b.registry != nil {
		fetches = append(fetches, fetch{"vision", func(ctx context.Context) (string, error) {
			return b.fetchTool(ctx, "vision", "analyze_screenshot",
				map[string]any{"prompt": "Briefly describe what is currently on screen."})
		}})
	}
	if profile.Audio && b.events != nil {
		fetches = append(fetches, fetch{"audio", func(ctx context.Context) (string, error) {
			return b.fetchAudio(ctx, sessionID)
		}})
	}
	if profile.System && b.registry != nil {
		fetches = append(fetches, fetch{"system", func(ctx context.Context) (string, error) {
			return b.fetchTool(ctx, "system", "snapshot", nil)
		}})
	}

	results := make(chan sourceResult, len(fetches))
	for _, f := range fetches {
		go func(f fetch) {
			start := time.Now()
			srcCtx, srcCancel := context.WithTimeout(ctx, b.soft)
			defer srcCancel()

			content, err := f.run(srcCtx)
			status := "ok"
			section := &models.ContextSection{Status: models.SectionOK}
			switch {
			case err != nil:
				status = "error"
				section.Status = models.SectionError
				section.Error = err.Error()
			default:
				section.Content, section.Truncated = b.truncate(content)
			}
			if b.metrics != nil {
				b.metrics.RecordContextSource(f.name, status, time.Since(start).Seconds())
			}
			results <- sourceResult{name: f.name, section: section}
		}(f)
	}

	sc := &models.SuperContext{
		UserMessage: userMessage,
		SessionID:   sessionID,
		RAG:         make(map[string]*models.ContextSection),
	}
	for range fetches {
		select {
		case r := <-results:
			b.place(sc, r)
		case <-ctx.Done():
			// Hard deadline: whatever has not answered is lost. The section
			// goroutines still drain into the buffered channel.
			b.finalize(sc)
			return sc
		}
	}
	b.finalize(sc)
	return sc
}

func (b *Builder) place(sc *models.SuperContext, r sourceResult) {
	switch {
	case r.name == "memory":
		sc.Memory = r.section
	case r.name == "memory_search":
		sc.MemorySearch = r.section
	case r.name == "vision":
		sc.Vision = r.section
	case r.name == "audio":
		sc.Audio = r.section
	case r.name == "system":
		sc.System = r.section
	case strings.HasPrefix(r.name, "rag:"):
		sc.RAG[strings.TrimPrefix(r.name, "rag:")] = r.section
	}
}

// finalize fills the assembly metadata: which sources produced content and
// the combined byte size.
func (b *Builder) finalize(sc *models.SuperContext) {
	var available []string
	total := 0
	sections := sc.Sections()
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := sections[name]
		total += len(s.Content)
		if s.Status == models.SectionOK && s.Content != "" {
			available = append(available, name)
		}
	}
	sc.Metadata.SourcesAvailable = available
	sc.Metadata.TotalContextSize = total
}

func (b *Builder) fetchMemorySearch(ctx context.Context, query, sessionID string, topK int) (string, error) {
	hits, err := b.memory.Search(ctx, query, sessionID, topK)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "[%s] %s\n", h.Message.Role, h.Message.Content)
	}
	return sb.String(), nil
}

func (b *Builder) fetchRAG(ctx context.Context, query string, dataset models.Dataset, topK int) (string, error) {
	results, err := b.retrieval.Query(ctx, rag.QueryRequest{
		Dataset: string(dataset),
		Text:    query,
		TopK:    topK,
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "[%s] %s\n", r.Filename, r.Content)
	}
	return sb.String(), nil
}

func (b *Builder) fetchTool(ctx context.Context, tool, action string, args map[string]any) (string, error) {
	res := b.registry.Call(ctx, tool, action, args)
	if !res.OK {
		return "", fmt.Errorf("%s.%s: %s: %s", tool, action, res.ErrorKind, res.ErrorMessage)
	}
	return renderData(res.Data), nil
}

// fetchAudio renders the latest audio timeline events (transcriptions already
// captured by the audio tool) instead of recording anything live.
func (b *Builder) fetchAudio(ctx context.Context, sessionID string) (string, error) {
	events, err := b.events.List(ctx, models.TimelineFilter{
		SessionID: sessionID,
		Modality:  models.ModalityAudio,
		Limit:     audioEventWindow,
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := len(events) - 1; i >= 0; i-- { // oldest first for reading order
		e := events[i]
		if text := audioText(e.Data); text != "" {
			fmt.Fprintf(&sb, "[%s] %s\n", e.EventType, text)
		}
	}
	return sb.String(), nil
}

func audioText(data map[string]any) string {
	for _, key := range []string{"transcription", "text", "content"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// renderData flattens a tool payload to text: strings pass through, maps
// render as sorted "key: value" lines.
func renderData(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %v\n", k, v[k])
		}
		return sb.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncate cuts content to the per-source cap on a rune boundary and marks
// the cut with a trailing ellipsis.
func (b *Builder) truncate(content string) (string, bool) {
	if len(content) <= b.maxBytes {
		return content, false
	}
	cut := b.maxBytes
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "…", true
}
