package store

import "time"

// Status is the lifecycle state of a section.
type Status string

const (
	// StatusDraft marks a section awaiting a human accept/discard decision.
	StatusDraft Status = "draft"
	// StatusAccepted marks a section that is part of the distillation.
	StatusAccepted Status = "accepted"
	// StatusDiscarded marks a section excluded from all assembly.
	StatusDiscarded Status = "discarded"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusAccepted, StatusDiscarded:
		return true
	}
	return false
}

// RunConfig is the per-document generation configuration. It is snapshotted
// at the start of every generation cycle; the controller never reads it
// mid-cycle.
type RunConfig struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	StopToken    string `json:"stop_token"`
	MaxSections  int    `json:"max_sections"`
	AutoAdvance  bool   `json:"auto_advance"`
}

// Document is one source text under distillation.
type Document struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	// Text is the full extracted text. It is truncated to the request
	// budget only when a prompt is assembled, never in storage.
	Text string    `json:"text"`
	Run  RunConfig `json:"run"`
	// NextOrdinal is the ordinal the next appended section receives.
	// It only ever grows, so ordinals are never reused after an undo.
	NextOrdinal int       `json:"next_ordinal"`
	CreatedAt   time.Time `json:"created_at"`
}

// Section is one generated unit of the distillation.
type Section struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Ordinal    int       `json:"ordinal"`
	Heading    string    `json:"heading"`
	Content    string    `json:"content"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
