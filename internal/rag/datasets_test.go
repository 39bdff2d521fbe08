package rag

import (
	"testing"

	"github.com/yaya56vv/cortex/pkg/models"
)

func TestCanonicalDataset(t *testing.T) {
	tests := []struct {
		tag  string
		want models.Dataset
	}{
		{"agent_core", models.DatasetAgentCore},
		{"context_flow", models.DatasetContextFlow},
		{"agent_memory", models.DatasetAgentMemory},
		{"projects", models.DatasetProjects},
		{"scratchpad", models.DatasetScratchpad},
		{"core", models.DatasetAgentCore},
		{"rules", models.DatasetAgentCore},
		{"feedback", models.DatasetAgentMemory},
		{"project", models.DatasetProjects},
		{"temp", models.DatasetScratchpad},
		{"  Projects  ", models.DatasetProjects},
		{"CORE", models.DatasetAgentCore},
		{"banana", models.DatasetScratchpad},
		{"", models.DatasetScratchpad},
	}
	for _, tt := range tests {
		if got := CanonicalDataset(tt.tag); got != tt.want {
			t.Errorf("CanonicalDataset(%q) = %s, want %s", tt.tag, got, tt.want)
		}
	}
}

func TestRouteDataset(t *testing.T) {
	tests := []struct {
		tag  string
		typ  string
		want models.Dataset
	}{
		// An explicit tag always wins.
		{"projects", "learning_data", models.DatasetProjects},
		{"temp", "core_rule", models.DatasetScratchpad},
		// Without a tag the type routes.
		{"", "core_rule", models.DatasetAgentCore},
		{"", "context_data", models.DatasetContextFlow},
		{"", "learning_data", models.DatasetAgentMemory},
		{"", "project_doc", models.DatasetProjects},
		{"", "general", models.DatasetScratchpad},
		{"", "Learning_Data", models.DatasetAgentMemory},
		// Unknown everything lands in scratchpad.
		{"", "mystery", models.DatasetScratchpad},
		{"", "", models.DatasetScratchpad},
	}
	for _, tt := range tests {
		if got := RouteDataset(tt.tag, tt.typ); got != tt.want {
			t.Errorf("RouteDataset(%q, %q) = %s, want %s", tt.tag, tt.typ, got, tt.want)
		}
	}
}

func TestDefaultRetentionDays(t *testing.T) {
	tests := []struct {
		dataset models.Dataset
		want    int
	}{
		{models.DatasetAgentCore, 0},
		{models.DatasetContextFlow, 90},
		{models.DatasetAgentMemory, 0},
		{models.DatasetProjects, 180},
		{models.DatasetScratchpad, 7},
	}
	for _, tt := range tests {
		if got := DefaultRetentionDays(tt.dataset); got != tt.want {
			t.Errorf("DefaultRetentionDays(%s) = %d, want %d", tt.dataset, got, tt.want)
		}
	}
}

func TestSanitizeMetadata(t *testing.T) {
	meta := models.DocumentMetadata{Type: "Project_Doc", Priority: "HIGH"}
	sanitizeMetadata(&meta)
	if meta.Type != "project_doc" {
		t.Errorf("expected normalized type, got %q", meta.Type)
	}
	if meta.Priority != models.PriorityHigh {
		t.Errorf("expected normalized priority, got %q", meta.Priority)
	}

	meta = models.DocumentMetadata{Type: "mystery", Priority: "urgent"}
	sanitizeMetadata(&meta)
	if meta.Type != "" {
		t.Errorf("unknown type should be dropped, got %q", meta.Type)
	}
	if meta.Priority != "" {
		t.Errorf("unknown priority should be dropped, got %q", meta.Priority)
	}

	meta = models.DocumentMetadata{}
	sanitizeMetadata(&meta)
	if meta.Type != "" || meta.Priority != "" {
		t.Errorf("empty metadata should stay empty, got %+v", meta)
	}
}
