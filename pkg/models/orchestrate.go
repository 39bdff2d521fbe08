package models

// ExecutionMode controls how much of a plan the executor runs without asking.
type ExecutionMode string

const (
	// ModeAuto executes single-step non-sensitive plans immediately and
	// parks anything else for confirmation.
	ModeAuto ExecutionMode = "auto"

	// ModePlanOnly produces a plan but never executes it.
	ModePlanOnly ExecutionMode = "plan_only"

	// ModeStepByStep executes one step per request, pausing between steps.
	ModeStepByStep ExecutionMode = "step_by_step"
)

// Valid reports whether m is a known execution mode.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeAuto, ModePlanOnly, ModeStepByStep:
		return true
	}
	return false
}

// OrchestrateRequest is the body of POST /orchestrate.
type OrchestrateRequest struct {
	// Prompt is the user message. Required unless Confirm or Cancel is set.
	Prompt string `json:"prompt"`

	// SessionID scopes memory, timeline and pending plans. Defaults to
	// "default" when empty.
	SessionID string `json:"session_id,omitempty"`

	// ExecutionMode selects auto, plan_only or step_by_step. Defaults to auto.
	ExecutionMode ExecutionMode `json:"execution_mode,omitempty"`

	// Confirm executes the plan parked for this session, or advances it one
	// step in step_by_step mode.
	Confirm bool `json:"confirm,omitempty"`

	// Cancel discards the plan parked for this session.
	Cancel bool `json:"cancel,omitempty"`

	// DryRun validates the plan against the catalog without executing it.
	DryRun bool `json:"dry_run,omitempty"`
}

// OrchestrateResponse is the body returned by POST /orchestrate.
type OrchestrateResponse struct {
	// Intention is the routed intent for the prompt.
	Intention string `json:"intention"`

	// Confidence is the router's confidence in the intention, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Plan is the validated plan, present in every mode.
	Plan *Plan `json:"plan,omitempty"`

	// Response is the final natural-language answer for the user.
	Response string `json:"response"`

	// ExecutionResults holds per-step outcomes when execution happened.
	ExecutionResults []ExecutionResult `json:"execution_results,omitempty"`

	// RequiresConfirmation is true when the plan was parked instead of run.
	RequiresConfirmation bool `json:"requires_confirmation"`

	// ExecutionModeUsed is the mode the kernel actually applied.
	ExecutionModeUsed ExecutionMode `json:"execution_mode_used"`

	// MemoryUpdated is true when the exchange was persisted to session memory.
	MemoryUpdated bool `json:"memory_updated"`

	// DryRun is the validation report when the request asked for a dry run.
	DryRun *DryRunReport `json:"dry_run,omitempty"`
}

// Suggestion is a proactive maintenance action proposed by the cognitive
// engine.
type Suggestion struct {
	// Type names the suggested action (e.g. "summarize_session").
	Type string `json:"type"`

	// Reason explains why the action fired.
	Reason string `json:"reason"`

	// SessionID is the session the suggestion applies to.
	SessionID string `json:"session_id"`
}

// CycleReport summarizes one autonomous cognitive cycle.
type CycleReport struct {
	// Summarized is true when the cycle archived a session summary.
	Summarized bool `json:"summarized"`

	// VisionSynced is the number of vision events copied to the document store.
	VisionSynced int `json:"vision_synced"`

	// AudioSynced is the number of audio transcriptions copied to memory.
	AudioSynced int `json:"audio_synced"`

	// Suggestions are the proactive actions proposed during the cycle.
	Suggestions []Suggestion `json:"suggestions"`

	// Errors lists non-fatal failures encountered during the cycle.
	Errors []string `json:"errors,omitempty"`
}
