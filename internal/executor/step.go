package executor

import (
	"context"
	"time"

	"github.com/yaya56vv/cortex/internal/catalog"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// messageExcerptLen bounds error text carried into timeline events.
const messageExcerptLen = 200

// runStep executes one step end to end: timeline start event, argument
// substitution, the retried tool call, and the closing timeline event.
func (e *Executor) runStep(ctx context.Context, handle *Handle, sessionID string, step models.PlanStep, previous any, hasPrevious bool) models.ExecutionResult {
	start := time.Now()
	e.record(ctx, sessionID, "step_start", map[string]any{
		"tool":   step.Tool,
		"action": step.Action,
		"args":   step.Args,
	})

	if handle.Cancelled() {
		return models.ExecutionResult{Step: step, Status: models.StepCancelled}
	}

	resolved, err := substitutePrevious(step, previous, hasPrevious)
	if err != nil {
		return e.finishError(ctx, sessionID, step, start, 1, toolclient.KindMissingPrevious, err.Error())
	}

	// The llm tool accepts an optional role; fill it from the step so the
	// service resolves the same model the planner intended.
	if resolved.Tool == "llm" {
		if _, ok := resolved.Args["role"]; !ok {
			args := make(map[string]any, len(resolved.Args)+1)
			for k, v := range resolved.Args {
				args[k] = v
			}
			args["role"] = string(catalog.EffectiveRole(resolved))
			resolved.Args = args
		}
	}

	res, attempts, cancelled := e.callWithRetry(ctx, handle, resolved)
	duration := time.Since(start)

	if cancelled {
		// No step_end: the step never reached a terminal tool outcome.
		if e.metrics != nil {
			e.metrics.RecordToolCall(step.Tool, step.Action, "cancelled", duration.Seconds())
		}
		return models.ExecutionResult{
			Step:       resolved,
			Status:     models.StepCancelled,
			DurationMS: duration.Milliseconds(),
			Attempts:   attempts,
		}
	}

	if !res.OK {
		return e.finishError(ctx, sessionID, resolved, start, attempts, res.ErrorKind, res.ErrorMessage)
	}

	e.record(ctx, sessionID, "step_end", map[string]any{
		"tool":        step.Tool,
		"action":      step.Action,
		"status":      string(models.StepSuccess),
		"duration_ms": duration.Milliseconds(),
		"attempts":    attempts,
	})
	if e.metrics != nil {
		e.metrics.RecordToolCall(step.Tool, step.Action, "success", duration.Seconds())
	}
	e.logger.Debug("step complete",
		"tool", step.Tool, "action", step.Action,
		"attempts", attempts, "duration_ms", duration.Milliseconds())

	return models.ExecutionResult{
		Step:       resolved,
		Status:     models.StepSuccess,
		Data:       res.Data,
		DurationMS: duration.Milliseconds(),
		Attempts:   attempts,
	}
}

// callWithRetry dispatches the step, retrying transient failures up to
// maxAttempts total calls. Terminal kinds (bad_request, unknown_action,
// permission_denied, …) return immediately.
func (e *Executor) callWithRetry(ctx context.Context, handle *Handle, step models.PlanStep) (res toolclient.Result, attempts int, cancelled bool) {
	for attempts = 1; ; attempts++ {
		callCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		unlink := linkHandle(callCtx, cancel, handle)

		res = e.registry.Call(callCtx, step.Tool, step.Action, step.Args)

		unlink()
		cancel()

		if handle.Cancelled() {
			return res, attempts, true
		}
		if res.OK || !res.ErrorKind.Retryable() || attempts >= maxAttempts {
			return res, attempts, false
		}

		if e.metrics != nil {
			e.metrics.RecordToolRetry(step.Tool, string(res.ErrorKind))
		}
		e.logger.Debug("retrying step",
			"tool", step.Tool, "action", step.Action,
			"attempt", attempts, "kind", res.ErrorKind)
		if err := e.policy.Sleep(ctx, attempts); err != nil {
			return res, attempts, handle.Cancelled()
		}
	}
}

// linkHandle cancels the call context when the handle is cancelled, so an
// in-flight remote call unblocks at its next I/O boundary. The returned
// function detaches the link.
func linkHandle(ctx context.Context, cancel context.CancelFunc, handle *Handle) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-handle.cancel:
			cancel()
		case <-ctx.Done():
		case <-done:
		}
	}()
	return func() { close(done) }
}

// substitutePrevious rewrites "$previous" argument values to the most recent
// successful predecessor's data. Referencing it with no predecessor is the
// missing_previous error.
func substitutePrevious(step models.PlanStep, previous any, hasPrevious bool) (models.PlanStep, error) {
	needsPrevious := referencesPrevious(step)
	if !needsPrevious {
		return step, nil
	}
	if !hasPrevious {
		return step, &toolclient.Error{
			Kind:    toolclient.KindMissingPrevious,
			Tool:    step.Tool,
			Action:  step.Action,
			Message: "step references $previous but no prior step succeeded",
		}
	}
	args := make(map[string]any, len(step.Args))
	for k, v := range step.Args {
		if s, ok := v.(string); ok && s == previousSentinel {
			args[k] = previous
			continue
		}
		args[k] = v
	}
	step.Args = args
	return step, nil
}

// finishError closes a failed step: step_end and step_error events, metrics,
// and the error result.
func (e *Executor) finishError(ctx context.Context, sessionID string, step models.PlanStep, start time.Time, attempts int, kind toolclient.ErrorKind, message string) models.ExecutionResult {
	duration := time.Since(start)
	e.record(ctx, sessionID, "step_end", map[string]any{
		"tool":        step.Tool,
		"action":      step.Action,
		"status":      string(models.StepError),
		"duration_ms": duration.Milliseconds(),
		"attempts":    attempts,
	})
	e.record(ctx, sessionID, "step_error", map[string]any{
		"tool":            step.Tool,
		"action":          step.Action,
		"error_kind":      string(kind),
		"message_excerpt": excerpt(message),
	})
	if e.metrics != nil {
		e.metrics.RecordToolCall(step.Tool, step.Action, "error", duration.Seconds())
		e.metrics.RecordError("executor", string(kind))
	}
	e.logger.Warn("step failed",
		"tool", step.Tool, "action", step.Action,
		"kind", kind, "attempts", attempts, "error", excerpt(message))

	return models.ExecutionResult{
		Step:         step,
		Status:       models.StepError,
		ErrorKind:    string(kind),
		ErrorMessage: message,
		DurationMS:   duration.Milliseconds(),
		Attempts:     attempts,
	}
}

// record writes one timeline event; timeline failures are logged, never
// propagated into step results.
func (e *Executor) record(ctx context.Context, sessionID, eventType string, data map[string]any) {
	_, err := e.timeline.Append(ctx, models.TimelineEvent{
		SessionID: sessionID,
		EventType: eventType,
		Data:      data,
	})
	if err != nil {
		e.logger.Warn("timeline write failed", "event_type", eventType, "error", err)
	}
}

func excerpt(s string) string {
	if len(s) <= messageExcerptLen {
		return s
	}
	return s[:messageExcerptLen] + "…"
}
