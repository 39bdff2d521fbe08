package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting kernel metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Orchestration requests by intent, mode and outcome
//   - Context source fan-out latency and failures
//   - Tool and LLM call performance, including retries
//   - Document ingestion, chunking and retrieval
//   - Timeline writes and session archival
//   - Cognitive engine actions
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordToolCall("files", "read_file", "success", 0.012)
type Metrics struct {
	// OrchestrateCounter counts orchestration requests.
	// Labels: intent, mode (auto|plan_only|step_by_step), status (success|error|confirmation)
	OrchestrateCounter *prometheus.CounterVec

	// OrchestrateDuration measures end-to-end orchestration latency in seconds.
	// Labels: mode
	OrchestrateDuration *prometheus.HistogramVec

	// ContextSourceDuration measures per-source context fetch latency.
	// Labels: source (memory|memory_search|rag:<dataset>|vision|audio|system), status
	ContextSourceDuration *prometheus.HistogramVec

	// PlanSteps observes the number of steps in validated plans.
	PlanSteps prometheus.Histogram

	// PlanFallbackCounter counts plans replaced by the single-step fallback.
	// Labels: reason (parse_error|invalid_step)
	PlanFallbackCounter *prometheus.CounterVec

	// ToolCallCounter counts tool invocations.
	// Labels: tool, action, status (success|error)
	ToolCallCounter *prometheus.CounterVec

	// ToolCallDuration measures tool call latency in seconds.
	// Labels: tool, action
	ToolCallDuration *prometheus.HistogramVec

	// ToolRetryCounter counts retried tool calls by error kind.
	// Labels: tool, kind (transport|timeout|remote_error)
	ToolRetryCounter *prometheus.CounterVec

	// LLMRequestCounter counts model calls.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures model call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// EmbeddingDuration measures embedding request latency in seconds.
	// Labels: provider, status
	EmbeddingDuration *prometheus.HistogramVec

	// DocumentsIngested counts ingested documents.
	// Labels: dataset, status (created|updated|error)
	DocumentsIngested *prometheus.CounterVec

	// ChunksIndexed counts chunks written to the vector store.
	// Labels: dataset
	ChunksIndexed *prometheus.CounterVec

	// RAGQueryDuration measures retrieval latency in seconds.
	// Labels: dataset
	RAGQueryDuration *prometheus.HistogramVec

	// TimelineEvents counts appended timeline events.
	// Labels: modality
	TimelineEvents *prometheus.CounterVec

	// SessionsArchived counts sessions moved to the archive by the sweep.
	SessionsArchived prometheus.Counter

	// CognitiveActions counts cognitive engine actions.
	// Labels: action (summarize|sync_vision|sync_audio|suggest), status
	CognitiveActions *prometheus.CounterVec

	// ErrorCounter tracks errors by component and kind.
	// Labels: component (kernel|planner|executor|rag|sessions|timeline|llm), kind
	ErrorCounter *prometheus.CounterVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP request latency in seconds.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registry. Call once at startup.
func NewMetrics() *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsFor creates metrics registered against the given registerer.
// Tests use this to avoid duplicate registration on the default registry.
func NewMetricsFor(reg prometheus.Registerer) *Metrics {
	return newMetricsWith(reg)
}

func newMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrchestrateCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_orchestrate_requests_total",
				Help: "Total orchestration requests by intent, mode and status",
			},
			[]string{"intent", "mode", "status"},
		),

		OrchestrateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_orchestrate_duration_seconds",
				Help:    "End-to-end orchestration latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),

		ContextSourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_context_source_duration_seconds",
				Help:    "Per-source context fetch latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"source", "status"},
		),

		PlanSteps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cortex_plan_steps",
				Help:    "Number of steps in validated plans",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),

		PlanFallbackCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_plan_fallbacks_total",
				Help: "Plans replaced by the single-step fallback, by reason",
			},
			[]string{"reason"},
		),

		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_tool_calls_total",
				Help: "Total tool invocations by tool, action and status",
			},
			[]string{"tool", "action", "status"},
		),

		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_tool_call_duration_seconds",
				Help:    "Tool call latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool", "action"},
		),

		ToolRetryCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_tool_retries_total",
				Help: "Retried tool calls by tool and error kind",
			},
			[]string{"tool", "kind"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_llm_requests_total",
				Help: "Total model calls by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_llm_request_duration_seconds",
				Help:    "Model call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_llm_tokens_total",
				Help: "Token consumption by provider, model and type",
			},
			[]string{"provider", "model", "type"},
		),

		EmbeddingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_embedding_duration_seconds",
				Help:    "Embedding request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"provider", "status"},
		),

		DocumentsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_documents_ingested_total",
				Help: "Ingested documents by dataset and status",
			},
			[]string{"dataset", "status"},
		),

		ChunksIndexed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_chunks_indexed_total",
				Help: "Chunks written to the vector store by dataset",
			},
			[]string{"dataset"},
		),

		RAGQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_rag_query_duration_seconds",
				Help:    "Retrieval latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"dataset"},
		),

		TimelineEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_timeline_events_total",
				Help: "Appended timeline events by modality",
			},
			[]string{"modality"},
		),

		SessionsArchived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cortex_sessions_archived_total",
				Help: "Sessions moved to the archive by the sweep",
			},
		),

		CognitiveActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_cognitive_actions_total",
				Help: "Cognitive engine actions by action and status",
			},
			[]string{"action", "status"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_errors_total",
				Help: "Errors by component and kind",
			},
			[]string{"component", "kind"},
		),

		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordOrchestrate records one orchestration request.
func (m *Metrics) RecordOrchestrate(intent, mode, status string, durationSeconds float64) {
	m.OrchestrateCounter.WithLabelValues(intent, mode, status).Inc()
	m.OrchestrateDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordContextSource records one context source fetch.
func (m *Metrics) RecordContextSource(source, status string, durationSeconds float64) {
	m.ContextSourceDuration.WithLabelValues(source, status).Observe(durationSeconds)
}

// RecordPlan records the size of a validated plan.
func (m *Metrics) RecordPlan(steps int) {
	m.PlanSteps.Observe(float64(steps))
}

// RecordPlanFallback records a plan replaced by the fallback, by reason.
func (m *Metrics) RecordPlanFallback(reason string) {
	m.PlanFallbackCounter.WithLabelValues(reason).Inc()
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool, action, status string, durationSeconds float64) {
	m.ToolCallCounter.WithLabelValues(tool, action, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool, action).Observe(durationSeconds)
}

// RecordToolRetry records one retried tool call.
func (m *Metrics) RecordToolRetry(tool, kind string) {
	m.ToolRetryCounter.WithLabelValues(tool, kind).Inc()
}

// RecordLLMRequest records one model call with token usage.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordEmbedding records one embedding request.
func (m *Metrics) RecordEmbedding(provider, status string, durationSeconds float64) {
	m.EmbeddingDuration.WithLabelValues(provider, status).Observe(durationSeconds)
}

// RecordIngest records one document ingestion with its chunk count.
func (m *Metrics) RecordIngest(dataset, status string, chunks int) {
	m.DocumentsIngested.WithLabelValues(dataset, status).Inc()
	if chunks > 0 {
		m.ChunksIndexed.WithLabelValues(dataset).Add(float64(chunks))
	}
}

// RecordRAGQuery records one retrieval query.
func (m *Metrics) RecordRAGQuery(dataset string, durationSeconds float64) {
	m.RAGQueryDuration.WithLabelValues(dataset).Observe(durationSeconds)
}

// RecordTimelineEvent records one appended event.
func (m *Metrics) RecordTimelineEvent(modality string) {
	m.TimelineEvents.WithLabelValues(modality).Inc()
}

// RecordCognitiveAction records one cognitive engine action.
func (m *Metrics) RecordCognitiveAction(action, status string) {
	m.CognitiveActions.WithLabelValues(action, status).Inc()
}

// RecordError increments the error counter for a component and kind.
func (m *Metrics) RecordError(component, kind string) {
	m.ErrorCounter.WithLabelValues(component, kind).Inc()
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
