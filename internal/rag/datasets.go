package rag

import (
	"strings"

	"github.com/yaya56vv/cortex/pkg/models"
)

// defaultRetention fixes how long each dataset keeps documents, in days.
// Zero means documents never expire.
var defaultRetention = map[models.Dataset]int{
	models.DatasetAgentCore:   0,
	models.DatasetContextFlow: 90,
	models.DatasetAgentMemory: 0,
	models.DatasetProjects:    180,
	models.DatasetScratchpad:  7,
}

// datasetAliases maps shorthand tags onto the fixed taxonomy.
var datasetAliases = map[string]models.Dataset{
	"core":     models.DatasetAgentCore,
	"rules":    models.DatasetAgentCore,
	"feedback": models.DatasetAgentMemory,
	"project":  models.DatasetProjects,
	"temp":     models.DatasetScratchpad,
}

// typeRouting maps a metadata type onto the dataset that holds it when no
// dataset was named on ingest. The keys double as the known metadata types.
var typeRouting = map[string]models.Dataset{
	"core_rule":     models.DatasetAgentCore,
	"context_data":  models.DatasetContextFlow,
	"learning_data": models.DatasetAgentMemory,
	"project_doc":   models.DatasetProjects,
	"general":       models.DatasetScratchpad,
}

// CanonicalDataset resolves a dataset tag to a taxonomy member. Canonical
// names pass through, known aliases resolve, anything else lands in
// scratchpad.
func CanonicalDataset(tag string) models.Dataset {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if d := models.Dataset(tag); d.Valid() {
		return d
	}
	if d, ok := datasetAliases[tag]; ok {
		return d
	}
	return models.DatasetScratchpad
}

// RouteDataset picks the dataset for an ingest. An explicit tag wins; with
// no tag the metadata type decides; with neither the document lands in
// scratchpad.
func RouteDataset(tag, metadataType string) models.Dataset {
	if strings.TrimSpace(tag) != "" {
		return CanonicalDataset(tag)
	}
	if d, ok := typeRouting[strings.ToLower(strings.TrimSpace(metadataType))]; ok {
		return d
	}
	return models.DatasetScratchpad
}

// DefaultRetentionDays returns the built-in retention for a dataset, in
// days. Zero means never expire.
func DefaultRetentionDays(d models.Dataset) int {
	return defaultRetention[d]
}

// sanitizeMetadata normalizes type and priority and drops unknown values
// instead of failing the ingest.
func sanitizeMetadata(meta *models.DocumentMetadata) {
	meta.Type = strings.ToLower(strings.TrimSpace(meta.Type))
	if _, ok := typeRouting[meta.Type]; !ok {
		meta.Type = ""
	}
	meta.Priority = models.Priority(strings.ToLower(strings.TrimSpace(string(meta.Priority))))
	if !meta.Priority.Valid() {
		meta.Priority = ""
	}
}
