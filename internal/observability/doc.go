// Package observability provides monitoring and debugging capabilities for
// the Cortex kernel through metrics, structured logging, and distributed
// tracing.
//
// # Overview
//
// The package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Request tracing with OpenTelemetry
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track the
// orchestration pipeline end to end: requests, context assembly, planning,
// tool calls, model calls, document ingestion and retrieval, and timeline
// writes.
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordToolCall("files", "read_file", "success", 0.012)
//
// # Logging
//
// Logging wraps log/slog with request and session correlation pulled from
// the context, and redacts API keys and other secrets before they reach the
// log stream:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "text"})
//	logger.Info(ctx, "plan executed", "steps", 3)
//
// # Tracing
//
// Tracing exports OTLP spans when an endpoint is configured and degrades to
// a no-op tracer when it is not, so instrumentation can stay in place in
// every build:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "cortex",
//	    Endpoint:    os.Getenv("OTEL_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
package observability
