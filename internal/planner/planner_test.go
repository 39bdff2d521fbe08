package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yaya56vv/cortex/internal/llm"
	"github.com/yaya56vv/cortex/pkg/models"
)

// stubModels returns a canned completion for every generate call.
type stubModels struct {
	text string
	err  error
	seen []llm.GenerateRequest
}

func (s *stubModels) Generate(ctx context.Context, role models.LLMRole, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	s.seen = append(s.seen, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.GenerateResult{Text: s.text, Model: "stub", Provider: "stub"}, nil
}

func newPlanner(t *testing.T, m Generator) *Planner {
	t.Helper()
	p, err := New(Config{Models: m})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestParsePlanStrictJSON(t *testing.T) {
	plan, err := ParsePlan(`{"steps":[{"tool":"files","action":"read_file","args":{"path":"a.txt"}}],"reasoning":"read it"}`)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "files" || plan.Steps[0].Action != "read_file" {
		t.Errorf("plan = %+v", plan)
	}
	if plan.Reasoning != "read it" {
		t.Errorf("reasoning = %q", plan.Reasoning)
	}
}

func TestParsePlanInsideCodeFence(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"steps\": [], \"reasoning\": \"nothing to do\"}\n```\nDone."
	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.Steps) != 0 || plan.Reasoning != "nothing to do" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestParsePlanJSON5TrailingComma(t *testing.T) {
	raw := `{"steps": [{"tool": "rag", "action": "query", "args": {"dataset": "projects", "text": "MCP",},},], "reasoning": "lookup"}`
	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Action != "query" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestParsePlanRepairsSingleQuotes(t *testing.T) {
	raw := `{'steps': [{'tool': 'search', 'action': 'search_web', 'args': {'query': 'Python FastAPI tutorial'}}], 'reasoning': 'search'}`
	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "search" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestParsePlanGarbledFails(t *testing.T) {
	if _, err := ParsePlan("I cannot help with that."); !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}

func TestValidatePlan(t *testing.T) {
	valid := &models.Plan{Steps: []models.PlanStep{
		{Tool: "files", Action: "read_file", Args: map[string]any{"path": "x"}},
	}}
	if err := ValidatePlan(valid); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}

	tests := []struct {
		name string
		step models.PlanStep
	}{
		{"unknown tool", models.PlanStep{Tool: "nope", Action: "x", Args: map[string]any{}}},
		{"unknown action", models.PlanStep{Tool: "files", Action: "nope", Args: map[string]any{}}},
		{"missing required arg", models.PlanStep{Tool: "files", Action: "read_file", Args: map[string]any{}}},
		{"undeclared arg", models.PlanStep{Tool: "files", Action: "read_file", Args: map[string]any{"path": "x", "mode": "fast"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &models.Plan{Steps: []models.PlanStep{tt.step}}
			if err := ValidatePlan(plan); err == nil {
				t.Error("invalid plan accepted")
			}
		})
	}
}

func TestValidatePlanEmptyIsLegal(t *testing.T) {
	if err := ValidatePlan(&models.Plan{}); err != nil {
		t.Errorf("empty plan rejected: %v", err)
	}
}

func TestPlanHappyPath(t *testing.T) {
	m := &stubModels{text: `{"steps":[{"tool":"files","action":"read_file","args":{"path":"test_document.txt"}}],"reasoning":"lire le fichier"}`}
	p := newPlanner(t, m)

	plan := p.Plan(context.Background(), "Lis le fichier test_document.txt", nil)
	if len(plan.Steps) != 1 || plan.Steps[0].Action != "read_file" {
		t.Fatalf("plan = %+v", plan)
	}
	if plan.Steps[0].PreferredLLM != models.RoleReasoning {
		t.Errorf("role = %s, want reasoning", plan.Steps[0].PreferredLLM)
	}
	if len(m.seen) != 1 {
		t.Fatalf("generate calls = %d", len(m.seen))
	}
	if !strings.Contains(m.seen[0].Prompt, "files:") || !strings.Contains(m.seen[0].Prompt, "read_file") {
		t.Error("prompt does not carry the tool catalog")
	}
}

func TestPlanFallbackOnGarbledOutput(t *testing.T) {
	m := &stubModels{text: "sorry, no JSON today"}
	p := newPlanner(t, m)

	plan := p.Plan(context.Background(), "hello", nil)
	if len(plan.Steps) != 1 {
		t.Fatalf("fallback plan = %+v", plan)
	}
	step := plan.Steps[0]
	if step.Tool != "llm" || step.Action != "generate" {
		t.Errorf("fallback step = %+v", step)
	}
	if step.Args["prompt"] != "hello" {
		t.Errorf("fallback prompt = %v", step.Args["prompt"])
	}
	if step.PreferredLLM != models.RoleReasoning {
		t.Errorf("fallback role = %s", step.PreferredLLM)
	}
}

func TestPlanFallbackOnInvalidStep(t *testing.T) {
	m := &stubModels{text: `{"steps":[{"tool":"teleport","action":"beam","args":{}}]}`}
	p := newPlanner(t, m)

	plan := p.Plan(context.Background(), "beam me up", nil)
	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "llm" {
		t.Fatalf("expected fallback, got %+v", plan)
	}
}

func TestPlanFallbackOnModelError(t *testing.T) {
	m := &stubModels{err: errors.New("connection refused")}
	p := newPlanner(t, m)

	plan := p.Plan(context.Background(), "hello", nil)
	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "llm" {
		t.Fatalf("expected fallback, got %+v", plan)
	}
}

func TestAssignRolesVisionDefault(t *testing.T) {
	m := &stubModels{text: `{"steps":[{"tool":"vision","action":"analyze_screenshot","args":{}}]}`}
	p := newPlanner(t, m)

	plan := p.Plan(context.Background(), "regarde l'écran", nil)
	if plan.Steps[0].PreferredLLM != models.RoleVision {
		t.Errorf("role = %s, want vision", plan.Steps[0].PreferredLLM)
	}
}

func TestAssignRolesCodeHeuristic(t *testing.T) {
	m := &stubModels{text: `{"steps":[{"tool":"files","action":"write_file","args":{"path":"main.go","content":"package main"}}]}`}
	p := newPlanner(t, m)

	plan := p.Plan(context.Background(), "écris le programme", nil)
	if plan.Steps[0].PreferredLLM != models.RoleCoding {
		t.Errorf("role = %s, want coding", plan.Steps[0].PreferredLLM)
	}
}

func TestAssignRolesExplicitWins(t *testing.T) {
	m := &stubModels{text: `{"steps":[{"tool":"vision","action":"extract_text","args":{"image_path":"x.png"},"preferred_llm":"reasoning"}]}`}
	p := newPlanner(t, m)

	plan := p.Plan(context.Background(), "lis l'image", nil)
	if plan.Steps[0].PreferredLLM != models.RoleReasoning {
		t.Errorf("role = %s, want the explicit reasoning", plan.Steps[0].PreferredLLM)
	}
}

func TestBuildPromptIncludesContextSections(t *testing.T) {
	p := newPlanner(t, &stubModels{})
	sc := &models.SuperContext{
		Memory: &models.ContextSection{Status: models.SectionOK, Content: "[user] salut"},
		RAG: map[string]*models.ContextSection{
			"projects": {Status: models.SectionOK, Content: "[plan.md] ship it"},
		},
	}
	prompt := p.buildPrompt("où en est le projet ?", sc)
	if !strings.Contains(prompt, "[user] salut") || !strings.Contains(prompt, "ship it") {
		t.Error("prompt missing context sections")
	}
	if !strings.Contains(prompt, "memory: ") {
		t.Error("prompt missing summary line")
	}
}

func TestBuildPromptTrimsToBudget(t *testing.T) {
	p, err := New(Config{Models: &stubModels{}, TokenBudget: 400})
	if err != nil {
		t.Fatal(err)
	}
	big := strings.Repeat("context filler words ", 500)
	sc := &models.SuperContext{
		Memory: &models.ContextSection{Status: models.SectionOK, Content: "[user] keep me"},
		RAG: map[string]*models.ContextSection{
			"projects": {Status: models.SectionOK, Content: big},
		},
	}
	prompt := p.buildPrompt("question", sc)
	if CountTokens(prompt) > 400 {
		t.Errorf("prompt = %d tokens, want <= 400", CountTokens(prompt))
	}
	if !strings.Contains(prompt, "question") {
		t.Error("user message must survive trimming")
	}
	if strings.Contains(prompt, big[:200]) {
		t.Error("largest section should have been dropped first")
	}
}

func TestSummary(t *testing.T) {
	sc := &models.SuperContext{
		Memory: &models.ContextSection{Status: models.SectionOK, Content: "abc"},
		Vision: &models.ContextSection{Status: models.SectionError, Error: "timeout"},
	}
	s := Summary(sc)
	if !strings.Contains(s, "memory: 3 bytes") || !strings.Contains(s, "vision: error") {
		t.Errorf("Summary = %q", s)
	}
	if Summary(nil) != "no context" {
		t.Errorf("Summary(nil) = %q", Summary(nil))
	}
}
