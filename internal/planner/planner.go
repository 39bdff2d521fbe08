// Package planner turns a user message plus its SuperContext into a
// validated execution plan.
//
// The reasoning model is asked for a JSON object {steps, reasoning} over the
// verbatim tool catalog. Model output is parsed leniently (strict JSON, then
// JSON5, then a repair pass) and every step is validated against the catalog
// and its argument schema. Anything that fails — the model call itself, the
// parse, the validation — degrades to the fallback plan: a single llm.generate
// step answering the user directly. Plan never returns an error.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/yaya56vv/cortex/internal/catalog"
	"github.com/yaya56vv/cortex/internal/llm"
	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/pkg/models"
)

const (
	// defaultTokenBudget bounds the assembled prompt. Context sections are
	// dropped, largest first, until the prompt fits.
	defaultTokenBudget = 6000

	// defaultTimeout bounds the planning model call.
	defaultTimeout = 120 * time.Second

	maxCompletionTokens = 2048
)

// Generator is the slice of the model registry the planner uses.
type Generator interface {
	Generate(ctx context.Context, role models.LLMRole, req llm.GenerateRequest) (*llm.GenerateResult, error)
}

// Config assembles a Planner.
type Config struct {
	// Models serves the planning calls. Required.
	Models Generator

	// TokenBudget caps the prompt size in tokens.
	TokenBudget int

	// Timeout bounds the planning model call.
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Planner produces plans. It is stateless and safe for concurrent use.
type Planner struct {
	models  Generator
	budget  int
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// New assembles a Planner.
func New(cfg Config) (*Planner, error) {
	if cfg.Models == nil {
		return nil, fmt.Errorf("planner: model registry is required")
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = defaultTokenBudget
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Planner{
		models:  cfg.Models,
		budget:  cfg.TokenBudget,
		timeout: cfg.Timeout,
		logger:  cfg.Logger.With("component", "planner"),
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}, nil
}

// FallbackPlan is the plan used whenever planning cannot produce a valid
// one: answer the user directly with the reasoning model.
func FallbackPlan(userMessage string) *models.Plan {
	return &models.Plan{
		Steps: []models.PlanStep{{
			Tool:         "llm",
			Action:       "generate",
			Args:         map[string]any{"prompt": userMessage},
			PreferredLLM: models.RoleReasoning,
		}},
		Reasoning: "fallback: answer directly",
	}
}

// Plan asks the reasoning model for a plan over the tool catalog. The result
// is always a valid plan; failures degrade to the fallback.
func (p *Planner) Plan(ctx context.Context, userMessage string, sc *models.SuperContext) *models.Plan {
	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, "plan")
		defer span.End()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prompt := p.buildPrompt(userMessage, sc)

	res, err := p.models.Generate(ctx, models.RoleReasoning, llm.GenerateRequest{
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: maxCompletionTokens,
	})
	if err != nil {
		return p.fallback(userMessage, "model_error", err)
	}

	plan, err := ParsePlan(res.Text)
	if err != nil {
		return p.fallback(userMessage, "parse_error", err)
	}
	if err := ValidatePlan(plan); err != nil {
		return p.fallback(userMessage, "invalid_plan", err)
	}
	p.assignRoles(plan)

	if p.metrics != nil {
		p.metrics.RecordPlan(len(plan.Steps))
	}
	p.logger.Debug("plan produced", "steps", len(plan.Steps))
	return plan
}

func (p *Planner) fallback(userMessage, reason string, err error) *models.Plan {
	if p.metrics != nil {
		p.metrics.RecordPlanFallback(reason)
	}
	p.logger.Warn("planning degraded to fallback", "reason", reason, "error", err)
	return FallbackPlan(userMessage)
}

// ValidatePlan checks every step against the catalog and its argument
// schema. An empty plan is valid (answer directly).
func ValidatePlan(plan *models.Plan) error {
	for i, step := range plan.Steps {
		if err := catalog.ValidateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if err := validateArgs(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// assignRoles fills each step's role per the selection policy: an explicit
// valid preference wins; vision actions take the vision role; file and system
// steps whose arguments look like code take the coding role; everything else
// takes the catalog default.
func (p *Planner) assignRoles(plan *models.Plan) {
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.PreferredLLM.Valid() {
			continue
		}
		role := catalog.EffectiveRole(*step)
		if role == models.RoleReasoning && isCodeStep(*step) {
			role = models.RoleCoding
		}
		step.PreferredLLM = role
	}
}

// isCodeStep reports whether a files or system step clearly operates on code.
func isCodeStep(step models.PlanStep) bool {
	if step.Tool != "files" && step.Tool != "system" {
		return false
	}
	var sb strings.Builder
	for _, v := range step.Args {
		if s, ok := v.(string); ok {
			sb.WriteString(strings.ToLower(s))
			sb.WriteString(" ")
		}
	}
	text := sb.String()
	for _, marker := range []string{
		".go", ".py", ".js", ".ts", ".rs", ".java", ".c", ".sh",
		"func ", "def ", "class ", "import ", "#!/",
	} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
