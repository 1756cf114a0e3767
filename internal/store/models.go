package store

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is a person whose Google calendar mirrors a slice of the
// timetable. Courses holds the selected course codes; CalendarID is the
// provider calendar the events land on, empty until the first sync creates
// it. FeedTokenHash guards the read-only ICS feed.
type Subscriber struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	CalendarID    string    `json:"calendarId,omitempty"`
	Courses       []string  `json:"courses"`
	FeedTokenHash string    `json:"-"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Report kinds.
const (
	ReportKindIngest     = "ingest"
	ReportKindSubscriber = "subscriber"
)

// SyncReport records the outcome of one ingestion or one subscriber
// reconciliation. RunID groups the reports of a single scheduled run;
// SubscriberID is nil on ingest reports.
type SyncReport struct {
	ID           int64      `json:"id"`
	RunID        uuid.UUID  `json:"runId"`
	SubscriberID *uuid.UUID `json:"subscriberId,omitempty"`
	Kind         string     `json:"kind"`
	Created      int        `json:"created"`
	Updated      int        `json:"updated"`
	Deleted      int        `json:"deleted"`
	Failed       int        `json:"failed"`
	Skipped      int        `json:"skipped"`
	Courses      int        `json:"courses"`
	Events       int        `json:"events"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   time.Time  `json:"finishedAt"`
}
