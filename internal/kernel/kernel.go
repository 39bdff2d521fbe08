// Package kernel is the orchestration root. It owns the request pipeline
// (intent → context → plan → execute → memory write-back) and the per-session
// confirmation state: gated plans are parked here until the user confirms or
// cancels, and step_by_step runs keep their cursor here between requests.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/yaya56vv/cortex/internal/catalog"
	"github.com/yaya56vv/cortex/internal/contextbuilder"
	"github.com/yaya56vv/cortex/internal/executor"
	"github.com/yaya56vv/cortex/internal/intent"
	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/planner"
	"github.com/yaya56vv/cortex/internal/sessions"
	"github.com/yaya56vv/cortex/pkg/models"
)

// ErrEmptyPrompt is returned when a request carries neither a prompt nor a
// confirm/cancel directive.
var ErrEmptyPrompt = errors.New("kernel: prompt is required")

// Config assembles a Kernel.
type Config struct {
	// Router classifies prompts. Required.
	Router *intent.Router

	// Builder assembles the supercontext. Required.
	Builder *contextbuilder.Builder

	// Planner turns prompt + context into a plan. Required.
	Planner *planner.Planner

	// Executor runs plans. Required.
	Executor *executor.Executor

	// Memory is the session store the exchange is written back to. Required.
	Memory sessions.Store

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// pendingPlan is a parked plan awaiting confirmation, or a step_by_step run
// between steps.
type pendingPlan struct {
	plan        *models.Plan
	mode        models.ExecutionMode
	cursor      int
	intention   intent.Result
	userMessage string
}

// Kernel routes one orchestration request through the full pipeline. Safe
// for concurrent use; per-session confirmation state is guarded internally.
type Kernel struct {
	router   *intent.Router
	builder  *contextbuilder.Builder
	planner  *planner.Planner
	executor *executor.Executor
	memory   sessions.Store
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer

	mu      sync.Mutex
	pending map[string]*pendingPlan
	active  map[string]*executor.Handle
}

// New assembles a Kernel.
func New(cfg Config) (*Kernel, error) {
	if cfg.Router == nil || cfg.Builder == nil || cfg.Planner == nil || cfg.Executor == nil || cfg.Memory == nil {
		return nil, fmt.Errorf("kernel: router, builder, planner, executor and memory are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Kernel{
		router:   cfg.Router,
		builder:  cfg.Builder,
		planner:  cfg.Planner,
		executor: cfg.Executor,
		memory:   cfg.Memory,
		logger:   cfg.Logger.With("component", "kernel"),
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		pending:  make(map[string]*pendingPlan),
		active:   make(map[string]*executor.Handle),
	}, nil
}

// Orchestrate runs one request through the pipeline. The returned error
// covers malformed requests and infrastructure failures; step failures are
// carried inside the response.
func (k *Kernel) Orchestrate(ctx context.Context, req models.OrchestrateRequest) (*models.OrchestrateResponse, error) {
	sessionID := sessions.SanitizeID(req.SessionID)
	ctx = observability.WithSessionID(ctx, sessionID)

	mode := req.ExecutionMode
	if !mode.Valid() {
		mode = models.ModeAuto
	}

	start := time.Now()

	switch {
	case req.Cancel:
		return k.cancel(ctx, sessionID, mode), nil
	case req.Confirm:
		return k.confirm(ctx, sessionID, mode)
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	if k.tracer != nil {
		var span trace.Span
		ctx, span = k.tracer.TraceOrchestrate(ctx, sessionID, string(mode))
		defer span.End()
	}

	routed := k.router.Classify(req.Prompt)

	sc := k.builder.Build(ctx, req.Prompt, sessionID, routed.Intent.Profile())
	plan := k.planner.Plan(ctx, req.Prompt, sc)

	resp := &models.OrchestrateResponse{
		Intention:         string(routed.Intent),
		Confidence:        routed.Confidence,
		Plan:              plan,
		ExecutionModeUsed: mode,
	}

	if req.DryRun {
		report := k.executor.DryRun(plan)
		resp.DryRun = &report
		resp.Response = renderDryRun(report)
		k.record(routed, mode, "dry_run", start)
		return resp, nil
	}

	// A fresh prompt supersedes whatever plan was parked for the session.
	k.mu.Lock()
	delete(k.pending, sessionID)
	k.mu.Unlock()

	outcome, err := k.execute(ctx, sessionID, executor.Request{
		Plan:        plan,
		SessionID:   sessionID,
		Mode:        mode,
		UserMessage: req.Prompt,
	})
	if err != nil {
		k.record(routed, mode, "error", start)
		return nil, err
	}

	resp.ExecutionResults = outcome.Results
	switch {
	case outcome.RequiresConfirmation:
		k.park(sessionID, &pendingPlan{
			plan:        plan,
			mode:        mode,
			intention:   routed,
			userMessage: req.Prompt,
		})
		resp.RequiresConfirmation = true
		resp.Response = renderGated(plan, mode)
	case mode == models.ModeStepByStep && len(outcome.Remaining) > 0:
		k.park(sessionID, &pendingPlan{
			plan:        plan,
			mode:        mode,
			cursor:      outcome.NextStep,
			intention:   routed,
			userMessage: req.Prompt,
		})
		resp.RequiresConfirmation = true
		resp.Response = renderStep(outcome, plan)
	default:
		resp.Response = renderResults(outcome.Results)
		resp.MemoryUpdated = k.writeBack(ctx, sessionID, req.Prompt, resp.Response)
	}

	k.record(routed, mode, statusOf(outcome), start)
	return resp, nil
}

// Cancel aborts the session's in-flight execution, if any, and discards its
// parked plan. Exposed for the gateway's connection-drop path.
func (k *Kernel) Cancel(sessionID string) bool {
	sessionID = sessions.SanitizeID(sessionID)
	k.mu.Lock()
	defer k.mu.Unlock()
	h, running := k.active[sessionID]
	_, parked := k.pending[sessionID]
	if running {
		h.Cancel()
	}
	delete(k.pending, sessionID)
	return running || parked
}

func (k *Kernel) cancel(ctx context.Context, sessionID string, mode models.ExecutionMode) *models.OrchestrateResponse {
	had := k.Cancel(sessionID)
	resp := &models.OrchestrateResponse{ExecutionModeUsed: mode}
	if had {
		resp.Response = "Execution cancelled."
		k.logger.Info("execution cancelled", "session_id", sessionID)
	} else {
		resp.Response = "Nothing to cancel for this session."
	}
	return resp
}

// confirm resumes the session's parked plan: a gated plan runs to completion
// with the sensitivity gate lifted, a step_by_step plan advances one step.
func (k *Kernel) confirm(ctx context.Context, sessionID string, mode models.ExecutionMode) (*models.OrchestrateResponse, error) {
	k.mu.Lock()
	pp := k.pending[sessionID]
	delete(k.pending, sessionID)
	k.mu.Unlock()

	if pp == nil {
		return &models.OrchestrateResponse{
			ExecutionModeUsed: mode,
			Response:          "No plan is awaiting confirmation for this session.",
		}, nil
	}

	start := time.Now()
	resp := &models.OrchestrateResponse{
		Intention:         string(pp.intention.Intent),
		Confidence:        pp.intention.Confidence,
		Plan:              pp.plan,
		ExecutionModeUsed: pp.mode,
	}

	ereq := executor.Request{
		Plan:        pp.plan,
		SessionID:   sessionID,
		UserMessage: pp.userMessage,
	}
	if pp.mode == models.ModeStepByStep {
		ereq.Mode = models.ModeStepByStep
		ereq.StartAt = pp.cursor
	} else {
		// plan_only and gated auto plans both run in full once confirmed.
		ereq.Mode = models.ModeAuto
		ereq.Confirmed = true
	}

	outcome, err := k.execute(ctx, sessionID, ereq)
	if err != nil {
		k.record(pp.intention, pp.mode, "error", start)
		return nil, err
	}

	resp.ExecutionResults = outcome.Results
	if pp.mode == models.ModeStepByStep && len(outcome.Remaining) > 0 {
		pp.cursor = outcome.NextStep
		k.park(sessionID, pp)
		resp.RequiresConfirmation = true
		resp.Response = renderStep(outcome, pp.plan)
	} else {
		resp.Response = renderResults(outcome.Results)
		resp.MemoryUpdated = k.writeBack(ctx, sessionID, pp.userMessage, resp.Response)
	}

	k.record(pp.intention, pp.mode, statusOf(outcome), start)
	return resp, nil
}

// execute runs the plan with the session's cancellation handle registered, so
// a concurrent cancel request can reach the in-flight run.
func (k *Kernel) execute(ctx context.Context, sessionID string, req executor.Request) (*executor.Outcome, error) {
	handle := executor.NewHandle()
	req.Handle = handle

	k.mu.Lock()
	k.active[sessionID] = handle
	k.mu.Unlock()
	defer func() {
		k.mu.Lock()
		if k.active[sessionID] == handle {
			delete(k.active, sessionID)
		}
		k.mu.Unlock()
	}()

	return k.executor.Execute(ctx, req)
}

func (k *Kernel) park(sessionID string, pp *pendingPlan) {
	k.mu.Lock()
	k.pending[sessionID] = pp
	k.mu.Unlock()
}

// writeBack persists the exchange to session memory. Failures are logged and
// reported through the memory_updated flag, never surfaced as errors.
func (k *Kernel) writeBack(ctx context.Context, sessionID, prompt, response string) bool {
	now := time.Now().UTC()
	if err := k.memory.AddMessage(ctx, sessionID, models.SessionMessage{
		Role:      "user",
		Content:   prompt,
		Timestamp: now,
	}); err != nil {
		k.logger.Warn("memory write-back failed", "session_id", sessionID, "role", "user", "error", err)
		return false
	}
	if err := k.memory.AddMessage(ctx, sessionID, models.SessionMessage{
		Role:      "assistant",
		Content:   response,
		Timestamp: now,
	}); err != nil {
		k.logger.Warn("memory write-back failed", "session_id", sessionID, "role", "assistant", "error", err)
		return false
	}
	return true
}

func (k *Kernel) record(routed intent.Result, mode models.ExecutionMode, status string, start time.Time) {
	if k.metrics != nil {
		k.metrics.RecordOrchestrate(string(routed.Intent), string(mode), status, time.Since(start).Seconds())
	}
}

func statusOf(outcome *executor.Outcome) string {
	if outcome.RequiresConfirmation {
		return "gated"
	}
	for _, r := range outcome.Results {
		switch r.Status {
		case models.StepError:
			return "error"
		case models.StepCancelled:
			return "cancelled"
		}
	}
	return "success"
}

// renderGated asks the user for confirmation, naming the sensitive steps.
func renderGated(plan *models.Plan, mode models.ExecutionMode) string {
	if mode == models.ModePlanOnly {
		return fmt.Sprintf("Planned %d step(s); nothing was executed. Send confirm: true to run the plan.", len(plan.Steps))
	}
	var sensitive []string
	for _, step := range plan.Steps {
		if catalog.IsSensitive(step.Tool, step.Action) {
			sensitive = append(sensitive, step.Tool+"."+step.Action)
		}
	}
	sort.Strings(sensitive)
	if len(sensitive) > 0 {
		return fmt.Sprintf("This plan has %d step(s), including sensitive operation(s): %s. Send confirm: true to run it.",
			len(plan.Steps), strings.Join(sensitive, ", "))
	}
	return fmt.Sprintf("This plan has %d steps. Send confirm: true to run it.", len(plan.Steps))
}

// renderStep reports one step_by_step advance.
func renderStep(outcome *executor.Outcome, plan *models.Plan) string {
	if len(outcome.Results) == 0 {
		return "No step was executed."
	}
	r := outcome.Results[0]
	prefix := fmt.Sprintf("Step %d/%d (%s.%s): ", outcome.NextStep, len(plan.Steps), r.Step.Tool, r.Step.Action)
	switch r.Status {
	case models.StepSuccess:
		return prefix + "done. Send confirm: true for the next step."
	case models.StepError:
		return prefix + fmt.Sprintf("failed (%s): %s", r.ErrorKind, r.ErrorMessage)
	default:
		return prefix + string(r.Status)
	}
}

// renderResults turns step outcomes into a short natural-language answer.
// The text of the last successful llm step wins; otherwise the terminal
// failure, or a completion summary, is reported.
func renderResults(results []models.ExecutionResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.Status != models.StepSuccess || r.Step.Tool != "llm" {
			continue
		}
		if data, ok := r.Data.(map[string]any); ok {
			if text, ok := data["text"].(string); ok && text != "" {
				return text
			}
		}
	}

	succeeded := 0
	for _, r := range results {
		switch r.Status {
		case models.StepSuccess:
			succeeded++
		case models.StepError:
			return fmt.Sprintf("The step %s.%s failed (%s): %s",
				r.Step.Tool, r.Step.Action, r.ErrorKind, r.ErrorMessage)
		case models.StepCancelled:
			return fmt.Sprintf("Execution was cancelled after %d completed step(s).", succeeded)
		}
	}
	if succeeded == 0 {
		return "No steps were executed."
	}
	return fmt.Sprintf("Completed %d step(s) successfully.", succeeded)
}

func renderDryRun(report models.DryRunReport) string {
	if report.CanExecute {
		return fmt.Sprintf("Plan is valid: %d step(s) pass catalog validation.", report.TotalSteps)
	}
	return fmt.Sprintf("Plan is invalid: %d of %d step(s) fail catalog validation.",
		len(report.InvalidSteps), report.TotalSteps)
}
