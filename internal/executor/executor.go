// Package executor runs validated plans against the tool fleet.
//
// Steps execute in plan order, each under its own deadline, with bounded
// retries for transient failures and a write-through to the timeline around
// every attempt. Adjacent steps marked independent run concurrently; their
// results still land in plan order. A cancellation handle stops scheduling
// and marks in-flight steps cancelled at their next I/O boundary.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/yaya56vv/cortex/internal/backoff"
	"github.com/yaya56vv/cortex/internal/catalog"
	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/planner"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

const (
	// maxAttempts bounds remote calls per retriable step.
	maxAttempts = 3

	// defaultStepTimeout bounds one step when the tool class gives no
	// tighter bound.
	defaultStepTimeout = 2 * time.Minute

	// previousSentinel is the argument value rewritten to the most recent
	// successful predecessor's data.
	previousSentinel = "$previous"
)

// Dispatcher is the slice of the tool registry the executor calls through.
type Dispatcher interface {
	Call(ctx context.Context, tool, action string, args map[string]any) toolclient.Result
}

// Recorder is the slice of the timeline the executor writes through to.
type Recorder interface {
	Append(ctx context.Context, event models.TimelineEvent) (*models.TimelineEvent, error)
}

// Config assembles an Executor.
type Config struct {
	// Registry dispatches tool calls. Required.
	Registry Dispatcher

	// Timeline receives step_start / step_end / step_error events. Required.
	Timeline Recorder

	// Backoff is the retry ladder. Zero value selects ToolCallPolicy.
	Backoff backoff.Policy

	// StepTimeout bounds one step attempt.
	StepTimeout time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Executor runs plans. It is stateless across runs and safe for concurrent
// use; per-run state lives in the Handle.
type Executor struct {
	registry    Dispatcher
	timeline    Recorder
	policy      backoff.Policy
	stepTimeout time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      *observability.Tracer
}

// New assembles an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("executor: registry is required")
	}
	if cfg.Timeline == nil {
		return nil, fmt.Errorf("executor: timeline is required")
	}
	if cfg.Backoff.Initial == 0 && cfg.Backoff.Max == 0 && cfg.Backoff.Factor == 0 && cfg.Backoff.Jitter == 0 && cfg.Backoff.Rand == nil {
		cfg.Backoff = backoff.ToolCallPolicy()
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		registry:    cfg.Registry,
		timeline:    cfg.Timeline,
		policy:      cfg.Backoff,
		stepTimeout: cfg.StepTimeout,
		logger:      cfg.Logger.With("component", "executor"),
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
	}, nil
}

// Handle is the cancellation surface of one plan execution. Cancel stops
// scheduling further steps; steps already in flight are marked cancelled at
// their next I/O boundary but the remote call is not force-killed.
type Handle struct {
	once   sync.Once
	cancel chan struct{}
}

// NewHandle creates an execution handle.
func NewHandle() *Handle {
	return &Handle{cancel: make(chan struct{})}
}

// Cancel signals the execution to stop. Safe to call more than once.
func (h *Handle) Cancel() {
	h.once.Do(func() { close(h.cancel) })
}

// Cancelled reports whether Cancel has been called.
func (h *Handle) Cancelled() bool {
	select {
	case <-h.cancel:
		return true
	default:
		return false
	}
}

// Request describes one plan execution.
type Request struct {
	// Plan is the validated plan. An empty plan synthesizes the fallback
	// step (answer directly with the reasoning model).
	Plan *models.Plan

	// SessionID scopes the timeline write-through.
	SessionID string

	// Mode selects auto, plan_only or step_by_step.
	Mode models.ExecutionMode

	// Confirmed marks that the user approved a parked plan; it unlocks
	// execution of sensitive or multi-step plans in auto mode.
	Confirmed bool

	// StartAt is the index of the next unexecuted step (step_by_step
	// continuation).
	StartAt int

	// Handle allows cancelling the run. Nil creates an internal one.
	Handle *Handle

	// UserMessage feeds the synthesized fallback step for empty plans.
	UserMessage string
}

// Outcome is the result of one Execute call.
type Outcome struct {
	// Results holds per-step outcomes in plan order.
	Results []models.ExecutionResult

	// RequiresConfirmation is true when the plan was gated instead of run.
	RequiresConfirmation bool

	// NextStep is the index of the next unexecuted step in step_by_step
	// mode; len(plan.Steps) when done.
	NextStep int

	// Remaining is the plan tail not yet executed (step_by_step).
	Remaining []models.PlanStep
}

// RequiresConfirmation reports whether a plan is gated in auto mode: more
// than one step, or any sensitive step.
func RequiresConfirmation(plan *models.Plan) bool {
	if plan == nil {
		return false
	}
	if len(plan.Steps) > 1 {
		return true
	}
	for _, step := range plan.Steps {
		if catalog.IsSensitive(step.Tool, step.Action) {
			return true
		}
	}
	return false
}

// Execute runs a plan per the request's mode. The returned error covers
// infrastructure failures only (timeline unavailable); step failures are
// carried in the results.
func (e *Executor) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "execute_plan")
		defer span.End()
	}

	plan := req.Plan
	if plan == nil {
		plan = &models.Plan{}
	}
	if len(plan.Steps) == 0 {
		plan = planner.FallbackPlan(req.UserMessage)
	}

	switch req.Mode {
	case models.ModePlanOnly:
		return &Outcome{RequiresConfirmation: true, Remaining: plan.Steps}, nil
	case models.ModeStepByStep:
		return e.executeOne(ctx, plan, req)
	default:
		if !req.Confirmed && RequiresConfirmation(plan) {
			return &Outcome{RequiresConfirmation: true, Remaining: plan.Steps}, nil
		}
		return e.executeAll(ctx, plan, req)
	}
}

// executeAll runs every step in order, grouping adjacent independent steps
// into concurrent batches. A hard failure (unknown action, exhausted
// retries) skips the remaining steps.
func (e *Executor) executeAll(ctx context.Context, plan *models.Plan, req Request) (*Outcome, error) {
	handle := req.Handle
	if handle == nil {
		handle = NewHandle()
	}

	results := make([]models.ExecutionResult, len(plan.Steps))
	var previous any
	hasPrevious := false
	stopped := false

	for i := 0; i < len(plan.Steps); {
		if stopped || handle.Cancelled() {
			for j := i; j < len(plan.Steps); j++ {
				results[j] = models.ExecutionResult{Step: plan.Steps[j], Status: models.StepSkipped}
			}
			break
		}

		group := e.parallelGroup(plan.Steps, i)
		if len(group) > 1 {
			var wg sync.WaitGroup
			for _, j := range group {
				wg.Add(1)
				go func(j int) {
					defer wg.Done()
					results[j] = e.runStep(ctx, handle, req.SessionID, plan.Steps[j], nil, false)
				}(j)
			}
			wg.Wait()
		} else {
			j := group[0]
			results[j] = e.runStep(ctx, handle, req.SessionID, plan.Steps[j], previous, hasPrevious)
		}

		// The newest successful result in the group feeds $previous.
		for _, j := range group {
			r := results[j]
			switch r.Status {
			case models.StepSuccess:
				previous = r.Data
				hasPrevious = true
			case models.StepError, models.StepCancelled:
				stopped = true
			}
		}
		i = group[len(group)-1] + 1
	}

	return &Outcome{Results: results, NextStep: len(plan.Steps)}, nil
}

// executeOne runs exactly the step at StartAt and returns the remaining tail.
func (e *Executor) executeOne(ctx context.Context, plan *models.Plan, req Request) (*Outcome, error) {
	handle := req.Handle
	if handle == nil {
		handle = NewHandle()
	}
	at := req.StartAt
	if at < 0 {
		at = 0
	}
	if at >= len(plan.Steps) {
		return &Outcome{NextStep: len(plan.Steps)}, nil
	}

	// $previous cannot span requests; a step_by_step step referencing it
	// with no in-request predecessor fails with missing_previous.
	result := e.runStep(ctx, handle, req.SessionID, plan.Steps[at], nil, false)
	return &Outcome{
		Results:   []models.ExecutionResult{result},
		NextStep:  at + 1,
		Remaining: plan.Steps[at+1:],
	}, nil
}

// parallelGroup returns the indexes of the batch starting at i: a run of
// adjacent steps all marked independent and none referencing $previous, or
// the single step at i.
func (e *Executor) parallelGroup(steps []models.PlanStep, i int) []int {
	if !steps[i].Independent || referencesPrevious(steps[i]) {
		return []int{i}
	}
	group := []int{i}
	for j := i + 1; j < len(steps); j++ {
		if !steps[j].Independent || referencesPrevious(steps[j]) {
			break
		}
		group = append(group, j)
	}
	return group
}

func referencesPrevious(step models.PlanStep) bool {
	for _, v := range step.Args {
		if s, ok := v.(string); ok && s == previousSentinel {
			return true
		}
	}
	return false
}

// DryRun validates every step against the catalog without executing
// anything.
func (e *Executor) DryRun(plan *models.Plan) models.DryRunReport {
	report := models.DryRunReport{}
	if plan == nil {
		report.CanExecute = true
		return report
	}
	report.TotalSteps = len(plan.Steps)
	for i, step := range plan.Steps {
		if err := catalog.ValidateStep(step); err != nil {
			report.InvalidSteps = append(report.InvalidSteps, i)
			continue
		}
		report.ValidSteps++
	}
	report.CanExecute = len(report.InvalidSteps) == 0
	return report
}
