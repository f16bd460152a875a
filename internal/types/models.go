package types

import (
	"strings"
	"time"
)

// Chunk is one paragraph-aligned slice of a transcript. Index is zero-based;
// TotalChunks is stamped once every chunk of the document is known.
type Chunk struct {
	Text        string `json:"text"`
	Index       int    `json:"index"`
	TotalChunks int    `json:"total_chunks"`
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority maps free text onto the priority enum, defaulting to Medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent", "critical", "p0", "p1":
		return PriorityHigh
	case "low", "p3", "p4":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
)

// TaskDraft is a task exactly as the oracle reported it: owner and deadline
// are raw text and have not been validated yet.
type TaskDraft struct {
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Deadline    string   `json:"deadline,omitempty"`
	Priority    Priority `json:"priority"`
	Confidence  float64  `json:"confidence"`
	// FromChunk is the 1-based chunk the task came from; 0 when the
	// transcript was not chunked.
	FromChunk int `json:"from_chunk,omitempty"`
}

// ExtractionResult is the per-chunk oracle output and also the shape of the
// merged record.
type ExtractionResult struct {
	Summary     string      `json:"summary"`
	Decisions   []string    `json:"decisions"`
	Tasks       []TaskDraft `json:"tasks"`
	NextMeeting string      `json:"next_meeting,omitempty"`

	// Set by the merger only.
	Chunked     bool `json:"chunked,omitempty"`
	TotalChunks int  `json:"total_chunks,omitempty"`
}

// Task is a fully resolved task owned by exactly one AnalysisRecord.
type Task struct {
	TaskDraft
	ResolvedDeadline time.Time `json:"resolved_deadline"`
	OwnerIdentityRef *string   `json:"owner_identity_ref"`
	IsUnassigned     bool      `json:"is_unassigned"`
	Status           Status    `json:"status"`
}

type Metadata struct {
	Chunked     bool      `json:"chunked"`
	TotalChunks int       `json:"total_chunks"`
	TextLength  int       `json:"text_length"`
	WordCount   int       `json:"word_count"`
	ProcessedAt time.Time `json:"processed_at"`
}

// AnalysisRecord is what the pipeline hands back for the caller to persist.
type AnalysisRecord struct {
	Summary     string   `json:"summary"`
	Decisions   []string `json:"decisions"`
	Tasks       []Task   `json:"tasks"`
	NextMeeting string   `json:"next_meeting,omitempty"`
	Metadata    Metadata `json:"metadata"`
}
