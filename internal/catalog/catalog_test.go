package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/invopop/jsonschema"

	"github.com/yaya56vv/cortex/pkg/models"
)

func TestToolsCanonicalOrder(t *testing.T) {
	want := []string{"files", "memory", "rag", "vision", "search", "system", "control", "audio", "documents", "llm"}
	got := Tools()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("tool %d: expected %s, got %s", i, name, got[i])
		}
	}
}

func TestActionsPerTool(t *testing.T) {
	tests := []struct {
		tool    string
		actions []string
	}{
		{"files", []string{"read_file", "write_file", "list_dir", "delete_file", "file_exists", "file_info"}},
		{"memory", []string{"add_message", "get_messages", "get_context", "search", "clear_session", "list_sessions"}},
		{"rag", []string{"add_document", "query", "list_documents", "list_datasets", "delete_document", "delete_dataset", "get_dataset_info", "cleanup_memory"}},
		{"vision", []string{"analyze_image", "extract_text", "analyze_screenshot"}},
		{"search", []string{"search_web", "search_news", "search_all"}},
		{"system", []string{"snapshot", "list_processes", "kill_process", "open_file", "open_folder", "run_program"}},
		{"control", []string{"move_mouse", "click_mouse", "scroll", "type", "keypress"}},
		{"audio", []string{"transcribe", "text_to_speech", "analyze"}},
		{"documents", []string{"generate_document", "fill_template"}},
		{"llm", []string{"generate", "chat", "list_models"}},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got := Actions(tt.tool)
			if len(got) != len(tt.actions) {
				t.Fatalf("expected %d actions, got %d: %v", len(tt.actions), len(got), got)
			}
			for i, name := range tt.actions {
				if got[i] != name {
					t.Errorf("action %d: expected %s, got %s", i, name, got[i])
				}
			}
		})
	}
}

func TestActionsUnknownTool(t *testing.T) {
	if got := Actions("telepathy"); got != nil {
		t.Errorf("expected nil for unknown tool, got %v", got)
	}
	if Has("telepathy") {
		t.Error("expected Has to be false for unknown tool")
	}
}

func TestLookup(t *testing.T) {
	a, ok := Lookup("rag", "query")
	if !ok {
		t.Fatal("expected rag.query to exist")
	}
	if a.Name != "query" {
		t.Errorf("expected name query, got %s", a.Name)
	}
	if len(a.Required) != 2 || a.Required[0] != "dataset" || a.Required[1] != "text" {
		t.Errorf("unexpected required args: %v", a.Required)
	}

	if _, ok := Lookup("rag", "levitate"); ok {
		t.Error("expected lookup miss for unknown action")
	}
	if _, ok := Lookup("telepathy", "query"); ok {
		t.Error("expected lookup miss for unknown tool")
	}
}

func TestSensitiveSet(t *testing.T) {
	tests := []struct {
		tool      string
		action    string
		sensitive bool
	}{
		{"files", "write_file", true},
		{"files", "delete_file", true},
		{"files", "read_file", false},
		{"files", "list_dir", false},
		{"system", "kill_process", true},
		{"system", "run_program", true},
		{"system", "snapshot", false},
		{"system", "list_processes", false},
		{"control", "move_mouse", true},
		{"control", "click_mouse", true},
		{"control", "scroll", true},
		{"control", "type", true},
		{"control", "keypress", true},
		{"rag", "add_document", true},
		{"rag", "delete_document", true},
		{"rag", "delete_dataset", true},
		{"rag", "query", false},
		{"rag", "cleanup_memory", false},
		{"documents", "generate_document", true},
		{"documents", "fill_template", true},
		{"audio", "text_to_speech", true},
		{"audio", "transcribe", false},
		{"audio", "analyze", false},
		{"memory", "add_message", false},
		{"memory", "clear_session", false},
		{"llm", "generate", false},
		{"vision", "analyze_image", false},
		{"search", "search_web", false},
	}

	for _, tt := range tests {
		t.Run(tt.tool+"."+tt.action, func(t *testing.T) {
			if got := IsSensitive(tt.tool, tt.action); got != tt.sensitive {
				t.Errorf("IsSensitive(%s, %s) = %v, want %v", tt.tool, tt.action, got, tt.sensitive)
			}
		})
	}
}

func TestIsSensitiveUnknownPair(t *testing.T) {
	if IsSensitive("telepathy", "read_mind") {
		t.Error("unknown pair must not be sensitive")
	}
	if IsSensitive("control", "levitate") {
		t.Error("unknown action must not be sensitive")
	}
}

func TestValidateStep(t *testing.T) {
	tests := []struct {
		name    string
		step    models.PlanStep
		wantErr error
	}{
		{
			name: "valid step",
			step: models.PlanStep{Tool: "files", Action: "read_file", Args: map[string]any{"path": "/tmp/notes.md"}},
		},
		{
			name: "valid step with optional arg",
			step: models.PlanStep{Tool: "rag", Action: "query", Args: map[string]any{"dataset": "projects", "text": "deadline", "top_k": 3}},
		},
		{
			name: "previous sentinel is a legal value",
			step: models.PlanStep{Tool: "files", Action: "write_file", Args: map[string]any{"path": "/tmp/out.txt", "content": "$previous"}},
		},
		{
			name: "no-arg action with empty args",
			step: models.PlanStep{Tool: "system", Action: "snapshot"},
		},
		{
			name:    "unknown tool",
			step:    models.PlanStep{Tool: "telepathy", Action: "read_mind"},
			wantErr: ErrUnknownTool,
		},
		{
			name:    "unknown action",
			step:    models.PlanStep{Tool: "files", Action: "levitate"},
			wantErr: ErrUnknownAction,
		},
		{
			name:    "missing required arg",
			step:    models.PlanStep{Tool: "files", Action: "write_file", Args: map[string]any{"path": "/tmp/out.txt"}},
			wantErr: ErrMissingArg,
		},
		{
			name:    "undeclared arg",
			step:    models.PlanStep{Tool: "llm", Action: "generate", Args: map[string]any{"prompt": "hi", "temperature": 0.7}},
			wantErr: ErrUnknownArg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStep(tt.step)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEffectiveRole(t *testing.T) {
	tests := []struct {
		name string
		step models.PlanStep
		want models.LLMRole
	}{
		{
			name: "explicit preference wins",
			step: models.PlanStep{Tool: "llm", Action: "generate", PreferredLLM: models.RoleCoding},
			want: models.RoleCoding,
		},
		{
			name: "vision default",
			step: models.PlanStep{Tool: "vision", Action: "analyze_image"},
			want: models.RoleVision,
		},
		{
			name: "coding default for write_file",
			step: models.PlanStep{Tool: "files", Action: "write_file"},
			want: models.RoleCoding,
		},
		{
			name: "reasoning default",
			step: models.PlanStep{Tool: "llm", Action: "generate"},
			want: models.RoleReasoning,
		},
		{
			name: "junk preference falls back to catalog default",
			step: models.PlanStep{Tool: "vision", Action: "extract_text", PreferredLLM: "oracle"},
			want: models.RoleVision,
		},
		{
			name: "unknown pair falls back to reasoning",
			step: models.PlanStep{Tool: "telepathy", Action: "read_mind"},
			want: models.RoleReasoning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveRole(tt.step); got != tt.want {
				t.Errorf("EffectiveRole = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	want := strings.Join([]string{
		"files:     read_file, write_file, list_dir, delete_file, file_exists, file_info",
		"memory:    add_message, get_messages, get_context, search, clear_session, list_sessions",
		"rag:       add_document, query, list_documents, list_datasets, delete_document, delete_dataset, get_dataset_info, cleanup_memory",
		"vision:    analyze_image, extract_text, analyze_screenshot",
		"search:    search_web, search_news, search_all",
		"system:    snapshot, list_processes, kill_process, open_file, open_folder, run_program",
		"control:   move_mouse, click_mouse, scroll, type, keypress",
		"audio:     transcribe, text_to_speech, analyze",
		"documents: generate_document, fill_template",
		"llm:       generate, chat, list_models",
		"",
	}, "\n")

	got := Render()
	if got != want {
		t.Errorf("unexpected render output:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
	if again := Render(); again != got {
		t.Error("render output is not deterministic")
	}
}

func TestArgsSchema(t *testing.T) {
	a, ok := Lookup("rag", "query")
	if !ok {
		t.Fatal("expected rag.query to exist")
	}
	schema := a.ArgsSchema()

	if schema.Type != "object" {
		t.Errorf("expected object schema, got %s", schema.Type)
	}
	if len(schema.Required) != 2 || schema.Required[0] != "dataset" || schema.Required[1] != "text" {
		t.Errorf("unexpected required list: %v", schema.Required)
	}
	if schema.AdditionalProperties != jsonschema.FalseSchema {
		t.Error("expected additional properties to be rejected")
	}
	for _, name := range []string{"dataset", "text", "top_k", "filters"} {
		if _, ok := schema.Properties.Get(name); !ok {
			t.Errorf("expected property %s in schema", name)
		}
	}
	if schema.Properties.Len() != 4 {
		t.Errorf("expected 4 properties, got %d", schema.Properties.Len())
	}
}

func TestServicesReturnsCopy(t *testing.T) {
	a := Services()
	a[0].Name = "mutated"
	b := Services()
	if b[0].Name != "files" {
		t.Errorf("catalog mutated through returned slice: %s", b[0].Name)
	}
}

func TestEverySensitivePatternCoversSomething(t *testing.T) {
	for _, pattern := range sensitivePatterns {
		matched := false
		for _, svc := range services {
			for _, a := range svc.Actions {
				if matchPattern(pattern, svc.Name+"."+a.Name) {
					matched = true
				}
			}
		}
		if !matched {
			t.Errorf("pattern %q matches no catalog action", pattern)
		}
	}
}
