package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordToolCall(t *testing.T) {
	m := NewMetricsFor(prometheus.NewRegistry())

	m.RecordToolCall("files", "read_file", "success", 0.01)
	m.RecordToolCall("files", "read_file", "success", 0.02)
	m.RecordToolCall("rag", "query", "error", 0.5)

	expected := `
		# HELP cortex_tool_calls_total Total tool invocations by tool, action and status
		# TYPE cortex_tool_calls_total counter
		cortex_tool_calls_total{action="query",status="error",tool="rag"} 1
		cortex_tool_calls_total{action="read_file",status="success",tool="files"} 2
	`
	if err := testutil.CollectAndCompare(m.ToolCallCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestRecordLLMRequestTokens(t *testing.T) {
	m := NewMetricsFor(prometheus.NewRegistry())

	m.RecordLLMRequest("ollama", "llama3.1:8b", "success", 1.5, 120, 80)
	m.RecordLLMRequest("ollama", "llama3.1:8b", "success", 0.9, 0, 0)

	expected := `
		# HELP cortex_llm_tokens_total Token consumption by provider, model and type
		# TYPE cortex_llm_tokens_total counter
		cortex_llm_tokens_total{model="llama3.1:8b",provider="ollama",type="completion"} 80
		cortex_llm_tokens_total{model="llama3.1:8b",provider="ollama",type="prompt"} 120
	`
	if err := testutil.CollectAndCompare(m.LLMTokensUsed, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestRecordIngest(t *testing.T) {
	m := NewMetricsFor(prometheus.NewRegistry())

	m.RecordIngest("projects", "created", 12)
	m.RecordIngest("projects", "updated", 3)
	m.RecordIngest("scratchpad", "error", 0)

	if got := testutil.ToFloat64(m.ChunksIndexed.WithLabelValues("projects")); got != 15 {
		t.Errorf("ChunksIndexed = %v, want 15", got)
	}
	if got := testutil.ToFloat64(m.DocumentsIngested.WithLabelValues("scratchpad", "error")); got != 1 {
		t.Errorf("DocumentsIngested error count = %v, want 1", got)
	}
}

func TestRecordOrchestrate(t *testing.T) {
	m := NewMetricsFor(prometheus.NewRegistry())

	m.RecordOrchestrate("file_operation", "auto", "success", 0.25)
	m.RecordOrchestrate("question", "plan_only", "success", 0.1)

	if got := testutil.CollectAndCount(m.OrchestrateCounter); got != 2 {
		t.Errorf("label combinations = %d, want 2", got)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	// Two instances must be constructible for tests without panicking on
	// duplicate registration.
	a := NewMetricsFor(prometheus.NewRegistry())
	b := NewMetricsFor(prometheus.NewRegistry())
	a.RecordError("kernel", "timeout")
	b.RecordError("kernel", "timeout")

	if got := testutil.ToFloat64(a.ErrorCounter.WithLabelValues("kernel", "timeout")); got != 1 {
		t.Errorf("ErrorCounter = %v, want 1", got)
	}
}
