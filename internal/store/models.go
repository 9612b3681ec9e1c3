// Package store persists meeting records and transcript lines to SQLite.
package store

import "time"

// Meeting statuses mirror the terminal and in-flight session states.
const (
	StatusRecording  = "recording"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Transcript line kinds. Live lines are provisional and replaced by final
// lines once the complete transcript is assembled.
const (
	KindLive  = "live"
	KindFinal = "final"
)

// Record is one stored meeting.
type Record struct {
	ID              string
	Title           string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds float64
	AudioPath       string
	Transcript      string
	SummaryJSON     string
	Status          string
	FailReason      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Line is one stored transcript line.
type Line struct {
	ID            int64
	MeetingID     string
	Seq           int
	OffsetSeconds float64
	Text          string
	Kind          string
	CreatedAt     time.Time
}

// Patch holds the fields of a partial record update. Nil fields are left
// untouched; set fields overwrite, last write wins.
type Patch struct {
	Title           *string
	EndedAt         *time.Time
	DurationSeconds *float64
	AudioPath       *string
	Transcript      *string
	SummaryJSON     *string
	Status          *string
	FailReason      *string
}
