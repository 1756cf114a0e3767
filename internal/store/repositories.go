package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campustools/gridcal/internal/timetable"
)

// CourseRepository persists the global course catalog.
type CourseRepository interface {
	ReplaceAll(ctx context.Context, courses []timetable.Course) error
	List(ctx context.Context) ([]timetable.Course, error)
}

// EventFilter narrows event listings. Zero values mean "no constraint".
type EventFilter struct {
	From             time.Time
	To               time.Time
	Courses          []string
	IncludeCancelled bool
}

// EventRepository persists the canonical schedule events.
type EventRepository interface {
	ReplaceAll(ctx context.Context, events []timetable.ScheduleEvent) error
	List(ctx context.Context, filter EventFilter) ([]timetable.ScheduleEvent, error)
}

// SubscriberRepository handles subscriber lifecycle.
type SubscriberRepository interface {
	Create(ctx context.Context, sub Subscriber) (*Subscriber, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*Subscriber, error)
	List(ctx context.Context, onlyActive bool) ([]Subscriber, error)
	UpdateCourses(ctx context.Context, id uuid.UUID, courses []string) error
	SetCalendarID(ctx context.Context, id uuid.UUID, calendarID string) error
	SetFeedTokenHash(ctx context.Context, id uuid.UUID, hash string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// ReportRepository records sync run outcomes.
type ReportRepository interface {
	Insert(ctx context.Context, report SyncReport) (*SyncReport, error)
	ListRecent(ctx context.Context, limit int) ([]SyncReport, error)
}
