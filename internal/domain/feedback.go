package domain

import "time"

// FeedbackEvent is an append-only record of a single reader reaction.
// Events are never mutated or deleted; the category and source are
// snapshotted at submission time so later re-labeling cannot change
// what the learner attributes the event to.
type FeedbackEvent struct {
	ID         string
	DocumentID string
	Type       FeedbackType
	Score      float64
	Category   string
	SourceURL  string
	CreatedAt  time.Time
}

// FlagRecord tracks an operator/reader flag against a document.
// Severity runs 1..3; severity 2 and up triggers the punitive
// reputation path immediately.
type FlagRecord struct {
	ID         int64
	DocumentID string
	Reason     string
	Severity   int
	Category   string
	SourceURL  string
	CreatedAt  time.Time
}

// FlagPattern aggregates flags sharing a category and reason inside
// the learner's window.
type FlagPattern struct {
	Category string
	Reason   string
	Count    int
}

// TaskState remembers when a named scheduler task last succeeded.
// Rows appear lazily on first success and are only ever moved forward.
type TaskState struct {
	Name    string
	LastRun time.Time
}
