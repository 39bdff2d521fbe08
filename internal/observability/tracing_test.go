package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewTracerNoEndpointIsNoop(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "cortex"})
	defer shutdown(context.Background())

	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}

	ctx, span := tracer.Start(context.Background(), "orchestrate")
	defer span.End()

	if ctx == nil {
		t.Error("Start() returned nil context")
	}
	// Without an exporter, spans are non-recording and trace IDs invalid.
	if id := GetTraceID(ctx); id != "" {
		t.Errorf("GetTraceID() = %q, want empty for no-op tracer", id)
	}
}

func TestWithSpanPropagatesError(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "cortex"})
	defer shutdown(context.Background())

	sentinel := errors.New("boom")
	err := WithSpan(context.Background(), tracer, "tool.files.read_file", func(ctx context.Context, span trace.Span) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("WithSpan() error = %v, want %v", err, sentinel)
	}
}

func TestTraceToolCallSpanName(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "cortex"})
	defer shutdown(context.Background())

	ctx, span := tracer.TraceToolCall(context.Background(), "rag", "query")
	defer span.End()

	if ctx == nil {
		t.Fatal("TraceToolCall() returned nil context")
	}
	tracer.SetAttributes(span, "dataset", "projects", "top_k", 5)
	tracer.AddEvent(span, "retrieval_done", "results", 3)
}
