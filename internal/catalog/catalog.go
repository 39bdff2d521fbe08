// Package catalog declares the static tool catalog: every tool service the
// orchestrator can reach, the actions each service supports, and the argument
// names, default LLM role, and sensitivity of each action.
//
// Actions are addressed by a (tool, action) pair rendered canonically as
//
//	<tool>.<action>   (e.g., files.read_file, rag.query)
//
// The catalog is compile-time data: nothing registers into it at runtime. It
// is the single source of truth consulted by the planner prompt, the step
// validator, and the executor dispatch table.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/yaya56vv/cortex/pkg/models"
)

// Action describes one action of a tool service.
type Action struct {
	// Name is the action name within its tool service.
	Name string `json:"name"`

	// Required lists argument names a plan step must supply.
	Required []string `json:"required,omitempty"`

	// Optional lists argument names the action understands but does not demand.
	Optional []string `json:"optional,omitempty"`

	// DefaultRole is the LLM role a step runs with when it names none.
	DefaultRole models.LLMRole `json:"default_role"`

	// Sensitive marks actions with side effects that must not run in
	// automatic mode without explicit confirmation.
	Sensitive bool `json:"sensitive,omitempty"`
}

// Service groups the actions of one tool service.
type Service struct {
	// Name is the tool service name used in plan steps and dispatch.
	Name string `json:"name"`

	// Description is a one-line summary for health output and diagnostics.
	Description string `json:"description"`

	// Actions lists the service's actions in canonical order.
	Actions []Action `json:"actions"`
}

// services is the full catalog in canonical order. Argument lists name the
// wire-level parameters each tool service accepts; values are free-form JSON
// (a step may pass the "$previous" sentinel anywhere a literal is accepted).
var services = []Service{
	{
		Name:        "files",
		Description: "Local filesystem access",
		Actions: []Action{
			{Name: "read_file", Required: []string{"path"}, Optional: []string{"encoding"}},
			{Name: "write_file", Required: []string{"path", "content"}, Optional: []string{"append"}, DefaultRole: models.RoleCoding},
			{Name: "list_dir", Required: []string{"path"}, Optional: []string{"recursive"}},
			{Name: "delete_file", Required: []string{"path"}},
			{Name: "file_exists", Required: []string{"path"}},
			{Name: "file_info", Required: []string{"path"}},
		},
	},
	{
		Name:        "memory",
		Description: "Per-session conversational memory",
		Actions: []Action{
			{Name: "add_message", Required: []string{"session_id", "role", "content"}, Optional: []string{"metadata"}},
			{Name: "get_messages", Required: []string{"session_id"}, Optional: []string{"limit"}},
			{Name: "get_context", Required: []string{"session_id"}, Optional: []string{"max_messages"}},
			{Name: "search", Required: []string{"query"}, Optional: []string{"session_id", "top_k"}},
			{Name: "clear_session", Required: []string{"session_id"}},
			{Name: "list_sessions", Optional: []string{"category"}},
		},
	},
	{
		Name:        "rag",
		Description: "Semantic document store",
		Actions: []Action{
			{Name: "add_document", Required: []string{"filename", "content"}, Optional: []string{"dataset", "metadata"}},
			{Name: "query", Required: []string{"dataset", "text"}, Optional: []string{"top_k", "filters"}},
			{Name: "list_documents", Optional: []string{"dataset"}},
			{Name: "list_datasets"},
			{Name: "delete_document", Required: []string{"document_id"}},
			{Name: "delete_dataset", Required: []string{"dataset"}},
			{Name: "get_dataset_info", Required: []string{"dataset"}},
			{Name: "cleanup_memory", Optional: []string{"retention_days"}},
		},
	},
	{
		Name:        "vision",
		Description: "Image and screen understanding",
		Actions: []Action{
			{Name: "analyze_image", Required: []string{"image_path"}, Optional: []string{"prompt"}, DefaultRole: models.RoleVision},
			{Name: "extract_text", Required: []string{"image_path"}, DefaultRole: models.RoleVision},
			{Name: "analyze_screenshot", Optional: []string{"prompt"}, DefaultRole: models.RoleVision},
		},
	},
	{
		Name:        "search",
		Description: "Web and news search",
		Actions: []Action{
			{Name: "search_web", Required: []string{"query"}, Optional: []string{"max_results"}},
			{Name: "search_news", Required: []string{"query"}, Optional: []string{"max_results"}},
			{Name: "search_all", Required: []string{"query"}, Optional: []string{"max_results"}},
		},
	},
	{
		Name:        "system",
		Description: "Host inspection and process control",
		Actions: []Action{
			{Name: "snapshot"},
			{Name: "list_processes", Optional: []string{"filter"}},
			{Name: "kill_process", Required: []string{"pid"}},
			{Name: "open_file", Required: []string{"path"}},
			{Name: "open_folder", Required: []string{"path"}},
			{Name: "run_program", Required: []string{"command"}, Optional: []string{"args", "cwd"}},
		},
	},
	{
		Name:        "control",
		Description: "Mouse and keyboard input",
		Actions: []Action{
			{Name: "move_mouse", Required: []string{"x", "y"}},
			{Name: "click_mouse", Optional: []string{"button", "x", "y"}},
			{Name: "scroll", Required: []string{"amount"}, Optional: []string{"direction"}},
			{Name: "type", Required: []string{"text"}},
			{Name: "keypress", Required: []string{"key"}, Optional: []string{"modifiers"}},
		},
	},
	{
		Name:        "audio",
		Description: "Speech transcription and synthesis",
		Actions: []Action{
			{Name: "transcribe", Required: []string{"audio_path"}, Optional: []string{"language"}},
			{Name: "text_to_speech", Required: []string{"text"}, Optional: []string{"voice", "output_path"}},
			{Name: "analyze", Required: []string{"audio_path"}, Optional: []string{"prompt"}},
		},
	},
	{
		Name:        "documents",
		Description: "Document generation",
		Actions: []Action{
			{Name: "generate_document", Required: []string{"content"}, Optional: []string{"format", "title", "output_path"}},
			{Name: "fill_template", Required: []string{"template_path", "fields"}, Optional: []string{"output_path"}},
		},
	},
	{
		Name:        "llm",
		Description: "Direct model access",
		Actions: []Action{
			{Name: "generate", Required: []string{"prompt"}, Optional: []string{"model", "system", "max_tokens", "role"}},
			{Name: "chat", Required: []string{"messages"}, Optional: []string{"model", "system", "role"}},
			{Name: "list_models"},
		},
	},
}

// sensitivePatterns lists the (tool, action) pairs that must not execute in
// automatic mode without explicit confirmation. A trailing ".*" covers every
// action of a service.
var sensitivePatterns = []string{
	"files.write_file",
	"files.delete_file",
	"system.kill_process",
	"system.run_program",
	"control.*",
	"rag.add_document",
	"rag.delete_document",
	"rag.delete_dataset",
	"documents.*",
	"audio.text_to_speech",
}

var (
	byTool   map[string]*Service
	byAction map[string]map[string]*Action
)

func init() {
	byTool = make(map[string]*Service, len(services))
	byAction = make(map[string]map[string]*Action, len(services))
	for i := range services {
		svc := &services[i]
		byTool[svc.Name] = svc
		actions := make(map[string]*Action, len(svc.Actions))
		for j := range svc.Actions {
			a := &svc.Actions[j]
			if a.DefaultRole == "" {
				a.DefaultRole = models.RoleReasoning
			}
			a.Sensitive = matchesAny(sensitivePatterns, svc.Name+"."+a.Name)
			actions[a.Name] = a
		}
		byAction[svc.Name] = actions
	}
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, name) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, name string) bool {
	if pattern == "" || name == "" {
		return false
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == name
}

// Services returns the catalog in canonical order.
func Services() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}

// Tools returns the tool service names in canonical order.
func Tools() []string {
	out := make([]string, len(services))
	for i, svc := range services {
		out[i] = svc.Name
	}
	return out
}

// Has reports whether the named tool service exists.
func Has(tool string) bool {
	_, ok := byTool[tool]
	return ok
}

// Actions returns the action names of a tool service in canonical order,
// or nil for an unknown tool.
func Actions(tool string) []string {
	svc, ok := byTool[tool]
	if !ok {
		return nil
	}
	out := make([]string, len(svc.Actions))
	for i, a := range svc.Actions {
		out[i] = a.Name
	}
	return out
}

// Lookup returns the Action entry for a (tool, action) pair.
func Lookup(tool, action string) (Action, bool) {
	actions, ok := byAction[tool]
	if !ok {
		return Action{}, false
	}
	a, ok := actions[action]
	if !ok {
		return Action{}, false
	}
	return *a, true
}

// IsSensitive reports whether the pair requires confirmation before automatic
// execution. Unknown pairs are not sensitive; they fail validation instead.
func IsSensitive(tool, action string) bool {
	a, ok := Lookup(tool, action)
	return ok && a.Sensitive
}

// Step validation errors, matchable with errors.Is.
var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingArg    = errors.New("missing required argument")
	ErrUnknownArg    = errors.New("undeclared argument")
)

// ValidateStep checks a plan step against the catalog: the tool must exist,
// the action must exist within it, every required argument must be present,
// and every supplied argument must be declared. Argument values are not
// inspected; the "$previous" sentinel is resolved later, at execution time.
func ValidateStep(step models.PlanStep) error {
	spec, ok := Lookup(step.Tool, step.Action)
	if !ok {
		if !Has(step.Tool) {
			return fmt.Errorf("%w: %q", ErrUnknownTool, step.Tool)
		}
		return fmt.Errorf("%w: %s.%s", ErrUnknownAction, step.Tool, step.Action)
	}
	for _, name := range spec.Required {
		if _, ok := step.Args[name]; !ok {
			return fmt.Errorf("%w: %s.%s needs %q", ErrMissingArg, step.Tool, step.Action, name)
		}
	}
	for key := range step.Args {
		if !spec.accepts(key) {
			return fmt.Errorf("%w: %s.%s does not take %q", ErrUnknownArg, step.Tool, step.Action, key)
		}
	}
	return nil
}

// EffectiveRole returns the LLM role a step should run with: the step's own
// preference when it is a known role, else the action's catalog default,
// else reasoning.
func EffectiveRole(step models.PlanStep) models.LLMRole {
	if step.PreferredLLM.Valid() {
		return step.PreferredLLM
	}
	if spec, ok := Lookup(step.Tool, step.Action); ok && spec.DefaultRole.Valid() {
		return spec.DefaultRole
	}
	return models.RoleReasoning
}

func (a Action) accepts(arg string) bool {
	for _, name := range a.Required {
		if name == arg {
			return true
		}
	}
	for _, name := range a.Optional {
		if name == arg {
			return true
		}
	}
	return false
}

// ArgsSchema returns a JSON schema for the action's argument object: every
// declared argument as a free-typed property, required arguments marked, and
// undeclared keys rejected.
func (a Action) ArgsSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	for _, name := range a.Required {
		props.Set(name, &jsonschema.Schema{})
	}
	for _, name := range a.Optional {
		props.Set(name, &jsonschema.Schema{})
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             append([]string(nil), a.Required...),
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// Render returns the catalog as an aligned text block, one line per tool
// service, suitable for embedding verbatim in an LLM prompt. The output is
// deterministic: canonical service order, declaration order within each.
func Render() string {
	width := 0
	for _, svc := range services {
		if n := len(svc.Name) + 1; n > width {
			width = n
		}
	}
	var b strings.Builder
	for _, svc := range services {
		names := make([]string, len(svc.Actions))
		for i, a := range svc.Actions {
			names[i] = a.Name
		}
		fmt.Fprintf(&b, "%-*s %s\n", width, svc.Name+":", strings.Join(names, ", "))
	}
	return b.String()
}
