package models

import (
	"time"
)

// Modality tags a timeline event with the kind of data it carries.
type Modality string

const (
	// ModalityText is the default modality.
	ModalityText Modality = "text"

	// ModalityAudio marks events produced by audio capture or synthesis.
	ModalityAudio Modality = "audio"

	// ModalityVision marks events produced by image or screen analysis.
	ModalityVision Modality = "vision"

	// ModalityDocuments marks events produced by document generation.
	ModalityDocuments Modality = "documents"

	// ModalitySystem marks events produced by OS-level observation or control.
	ModalitySystem Modality = "system"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	switch m {
	case ModalityText, ModalityAudio, ModalityVision, ModalityDocuments, ModalitySystem:
		return true
	}
	return false
}

// TimelineEvent is one append-only record of something the kernel did or observed.
type TimelineEvent struct {
	// ID is the monotonic event identifier.
	ID int64 `json:"id"`

	// Timestamp is when the event was appended.
	Timestamp time.Time `json:"timestamp"`

	// SessionID is the session the event belongs to.
	SessionID string `json:"session_id"`

	// EventType names what happened (e.g. "step_start", "vision_analysis").
	EventType string `json:"event_type"`

	// Data is the free-form payload of the event.
	Data map[string]any `json:"data,omitempty"`

	// Metadata carries optional attributes not part of the payload.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Modality tags the event; derived from the event type when not supplied.
	Modality Modality `json:"modality"`
}

// TimelineFilter selects events for a timeline query. Zero values mean "any".
type TimelineFilter struct {
	// SessionID restricts results to one session.
	SessionID string `json:"session_id,omitempty"`

	// EventType restricts results to one event type.
	EventType string `json:"event_type,omitempty"`

	// Modality restricts results to one modality.
	Modality Modality `json:"modality,omitempty"`

	// Since excludes events older than the given time.
	Since time.Time `json:"since,omitempty"`

	// Limit caps the number of returned events (newest first).
	Limit int `json:"limit,omitempty"`
}
