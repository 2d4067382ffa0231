package entity

import "time"

type RunKind string

const (
	RunExtract RunKind = "EXTRACT"
	RunSync    RunKind = "SYNC"
)

const (
	RunRunning   = "RUNNING"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
)

// Run records one invocation of the extraction or synchronization half.
type Run struct {
	ID               string     `json:"id"`
	Kind             RunKind    `json:"kind"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Status           string     `json:"status"`
	BooksSeen        int        `json:"books_seen"`
	BooksSkipped     int        `json:"books_skipped"`
	RecordsCollected int        `json:"records_collected"`
	RecordsInserted  int        `json:"records_inserted"`
	BooksCreated     int        `json:"books_created"`
	NotesCreated     int        `json:"notes_created"`
	NotesFailed      int        `json:"notes_failed"`
	Error            string     `json:"error,omitempty"`
}
