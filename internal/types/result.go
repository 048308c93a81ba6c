package types

import "time"

// SubmitResult is returned by a submission backend for one batch.
type SubmitResult struct {
	BooksProcessed     int `json:"books_processed"`
	HighlightsImported int `json:"highlights_imported"`
	HighlightsSkipped  int `json:"highlights_skipped"`
}

// Outcome is the terminal state of one sync run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
)

// SyncResult is reported by the orchestrator at the end of every run.
type SyncResult struct {
	RunID              string        `json:"run_id"`
	Success            bool          `json:"success"`
	Outcome            Outcome       `json:"outcome"`
	Strategy           string        `json:"strategy,omitempty"`
	BooksProcessed     int           `json:"books_processed"`
	HighlightsImported int           `json:"highlights_imported"`
	HighlightsSkipped  int           `json:"highlights_skipped"`
	Error              string        `json:"error,omitempty"`
	Duration           time.Duration `json:"duration"`
}

// Status is the user-facing terminal status of a run.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusNoHighlights  Status = "no_highlights"
	StatusLoginRequired Status = "login_required"
	StatusCancelled     Status = "cancelled"
	StatusError         Status = "error"
)

// Notification is delivered once per run to the notification collaborator.
type Notification struct {
	RunID              string `json:"run_id"`
	Status             Status `json:"status"`
	BooksProcessed     int    `json:"books_processed,omitempty"`
	HighlightsImported int    `json:"highlights_imported,omitempty"`
	HighlightsSkipped  int    `json:"highlights_skipped,omitempty"`
	Message            string `json:"message,omitempty"`
}
