package models

// LLMRole names a class of model the executor may route a step to.
type LLMRole string

const (
	// RoleReasoning selects the general reasoning model.
	RoleReasoning LLMRole = "reasoning"

	// RoleCoding selects the code-oriented model.
	RoleCoding LLMRole = "coding"

	// RoleVision selects the multimodal model.
	RoleVision LLMRole = "vision"
)

// Valid reports whether r is a known role.
func (r LLMRole) Valid() bool {
	switch r {
	case RoleReasoning, RoleCoding, RoleVision:
		return true
	}
	return false
}

// PlanStep is one tool invocation in a plan.
type PlanStep struct {
	// Tool is the tool name from the catalog (e.g. "files", "rag").
	Tool string `json:"tool"`

	// Action is the action name within the tool (e.g. "read_file").
	Action string `json:"action"`

	// Args are the arguments passed to the action. String values may
	// reference the previous step's output with the "$previous" placeholder.
	Args map[string]any `json:"args"`

	// PreferredLLM hints which model role should serve the step when the
	// step targets the llm tool.
	PreferredLLM LLMRole `json:"preferred_llm,omitempty"`

	// Independent marks the step as having no data dependency on its
	// neighbors. Adjacent independent steps may run concurrently; a step
	// referencing "$previous" is executed sequentially regardless.
	Independent bool `json:"independent,omitempty"`
}

// Plan is an ordered list of steps produced by the planner.
type Plan struct {
	// Steps are executed in order. An empty list is a valid plan.
	Steps []PlanStep `json:"steps"`

	// Reasoning is the planner's free-text explanation of the plan.
	Reasoning string `json:"reasoning,omitempty"`
}

// StepStatus is the terminal state of one executed step.
type StepStatus string

const (
	// StepSuccess means the step completed and produced a result.
	StepSuccess StepStatus = "success"

	// StepError means the step failed after any retries.
	StepError StepStatus = "error"

	// StepSkipped means the step never started because a predecessor failed
	// or execution was cancelled before it was reached.
	StepSkipped StepStatus = "skipped"

	// StepCancelled means the step was in flight when execution was cancelled.
	StepCancelled StepStatus = "cancelled"
)

// ExecutionResult records the outcome of one plan step.
type ExecutionResult struct {
	// Step is the step that was executed, after placeholder substitution.
	Step PlanStep `json:"step"`

	// Status is the terminal state of the step.
	Status StepStatus `json:"status"`

	// Data is the step's result payload when Status is "success".
	Data any `json:"data,omitempty"`

	// ErrorKind classifies the failure when Status is "error".
	ErrorKind string `json:"error_kind,omitempty"`

	// ErrorMessage is the human-readable failure description.
	ErrorMessage string `json:"error_message,omitempty"`

	// DurationMS is the wall-clock duration of the step in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// Attempts is how many times the step was tried (1 when no retry happened).
	Attempts int `json:"attempts"`
}

// DryRunReport summarizes plan validation without execution.
type DryRunReport struct {
	// TotalSteps is the number of steps in the plan.
	TotalSteps int `json:"total_steps"`

	// ValidSteps is the number of steps that resolve against the catalog.
	ValidSteps int `json:"valid_steps"`

	// InvalidSteps lists the indexes of steps that failed validation.
	InvalidSteps []int `json:"invalid_steps,omitempty"`

	// CanExecute is true when every step validated.
	CanExecute bool `json:"can_execute"`
}
