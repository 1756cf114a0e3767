// Package run orchestrates the pipeline: fetch the grid, parse it into
// schedule events, persist the snapshot, and reconcile each subscriber's
// remote calendar against it.
package run

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/campustools/gridcal/internal/metrics"
	"github.com/campustools/gridcal/internal/source"
	"github.com/campustools/gridcal/internal/store"
	appsync "github.com/campustools/gridcal/internal/sync"
	"github.com/campustools/gridcal/internal/timetable"
)

// Calendar is the remote provider surface a sync run needs. *gcal.Client
// implements it.
type Calendar interface {
	appsync.Applier
	Events(ctx context.Context, calendarID string, from, to time.Time) ([]appsync.RemoteEvent, error)
	EnsureCalendar(ctx context.Context, name string) (string, error)
}

// DefaultCalendarName labels calendars this service creates for subscribers.
const DefaultCalendarName = "GridCal timetable"

// Service wires ingestion and reconciliation. Calendar may be nil, which
// limits runs to snapshot refreshes.
type Service struct {
	Source   source.Source
	Store    *store.Store
	Calendar Calendar
	Zone     *time.Location

	Tab          string
	DayBlockRows int
	BatchSize    int
	PastDays     int
	FutureDays   int

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

// Ingest fetches and parses the grid, then replaces the stored snapshot.
func (s *Service) Ingest(ctx context.Context) (*store.SyncReport, error) {
	return s.ingest(ctx, uuid.New())
}

func (s *Service) ingest(ctx context.Context, runID uuid.UUID) (*store.SyncReport, error) {
	started := s.now()
	report := store.SyncReport{RunID: runID, Kind: store.ReportKindIngest, StartedAt: started}

	err := func() error {
		snap, err := s.Source.Fetch(ctx, s.Tab)
		if err != nil {
			return fmt.Errorf("fetch grid: %w", err)
		}

		parser := timetable.Parser{DayBlockRows: s.DayBlockRows}
		events := timetable.Normalize(parser.Events(snap.Grid), snap.Cancelled)
		courses := timetable.Courses(snap.Grid)

		if err := s.Store.Courses.ReplaceAll(ctx, courses); err != nil {
			return fmt.Errorf("store courses: %w", err)
		}
		if err := s.Store.Events.ReplaceAll(ctx, events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}

		report.Courses = len(courses)
		report.Events = len(events)
		metrics.SetScheduleEvents(len(events))

		if !snap.HasStyles {
			log.Printf("[WARN] grid source carries no styling; cancellations are undetectable this run")
		}
		log.Printf("[INFO] ingest complete: %d courses, %d events", len(courses), len(events))
		return nil
	}()

	if err != nil {
		report.Error = err.Error()
	}
	report.FinishedAt = s.now()
	metrics.ObserveSyncRun(store.ReportKindIngest, err, started)
	return s.saveReport(ctx, report), err
}

// SyncSubscriber reconciles one subscriber's calendar against the stored
// snapshot.
func (s *Service) SyncSubscriber(ctx context.Context, sub store.Subscriber) (*store.SyncReport, error) {
	return s.syncSubscriber(ctx, uuid.New(), sub)
}

func (s *Service) syncSubscriber(ctx context.Context, runID uuid.UUID, sub store.Subscriber) (*store.SyncReport, error) {
	started := s.now()
	report := store.SyncReport{
		RunID:        runID,
		Kind:         store.ReportKindSubscriber,
		SubscriberID: &sub.ID,
		StartedAt:    started,
	}

	err := func() error {
		if s.Calendar == nil {
			return errors.New("calendar sync is not configured")
		}

		// A deactivated subscriber converges to an empty selection so the
		// mirrored events disappear on the next pass.
		selection := sub.Courses
		if !sub.Active {
			selection = nil
		}
		// No calendar and nothing selected: there is nothing to converge.
		if sub.CalendarID == "" && len(selection) == 0 {
			return nil
		}

		calendarID := sub.CalendarID
		if calendarID == "" {
			id, err := s.Calendar.EnsureCalendar(ctx, DefaultCalendarName)
			if err != nil {
				return fmt.Errorf("ensure calendar: %w", err)
			}
			if err := s.Store.Subscribers.SetCalendarID(ctx, sub.ID, id); err != nil {
				return fmt.Errorf("save calendar id: %w", err)
			}
			calendarID = id
		}

		from, to := s.window()

		stored, err := s.Store.Events.List(ctx, store.EventFilter{From: from, To: to})
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		canonical := timetable.ActiveForSelection(stored, selection)

		remote, err := s.Calendar.Events(ctx, calendarID, from, to)
		if err != nil {
			return fmt.Errorf("list remote events: %w", err)
		}

		plan := appsync.Reconciler{Zone: s.zone()}.Plan(canonical, remote)
		result := appsync.Executor{Client: s.Calendar, BatchSize: s.BatchSize}.Apply(ctx, calendarID, plan)

		report.Created = result.Created
		report.Updated = result.Updated
		report.Deleted = result.Deleted
		report.Failed = result.Failed
		report.Skipped = len(plan.Skipped)
		report.Events = len(canonical)

		metrics.AddCalendarOps(int64(result.Created), int64(result.Updated), int64(result.Deleted), int64(result.Failed))
		log.Printf("[INFO] synced %s: +%d ~%d -%d (%d failed, %d unchanged)",
			sub.Email, result.Created, result.Updated, result.Deleted, result.Failed, plan.Unchanged)
		return ctx.Err()
	}()

	if err != nil {
		report.Error = err.Error()
	}
	report.FinishedAt = s.now()
	metrics.ObserveSyncRun(store.ReportKindSubscriber, err, started)
	return s.saveReport(ctx, report), err
}

// SyncAll refreshes the snapshot, then reconciles every active subscriber.
// One failing subscriber does not stop the others.
func (s *Service) SyncAll(ctx context.Context) ([]store.SyncReport, error) {
	runID := uuid.New()
	log.Printf("[INFO] sync run %s starting", runID)

	var reports []store.SyncReport
	ingestReport, err := s.ingest(ctx, runID)
	if ingestReport != nil {
		reports = append(reports, *ingestReport)
	}
	if err != nil {
		return reports, fmt.Errorf("ingest: %w", err)
	}

	if s.Calendar == nil {
		log.Printf("[INFO] calendar sync disabled; snapshot refresh only")
		return reports, nil
	}

	subs, err := s.Store.Subscribers.List(ctx, true)
	if err != nil {
		return reports, fmt.Errorf("list subscribers: %w", err)
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		rep, err := s.syncSubscriber(ctx, runID, sub)
		if rep != nil {
			reports = append(reports, *rep)
		}
		if err != nil {
			log.Printf("[ERROR] sync subscriber %s: %v", sub.Email, err)
		}
	}

	log.Printf("[INFO] sync run %s finished: %d reports", runID, len(reports))
	return reports, nil
}

// window bounds a sync run to recent and upcoming event dates, aligned to
// day boundaries in the service zone.
func (s *Service) window() (time.Time, time.Time) {
	zone := s.zone()
	now := s.now().In(zone)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, zone)
	return day.AddDate(0, 0, -s.PastDays), day.AddDate(0, 0, s.FutureDays+1)
}

func (s *Service) saveReport(ctx context.Context, report store.SyncReport) *store.SyncReport {
	saved, err := s.Store.Reports.Insert(ctx, report)
	if err != nil {
		log.Printf("[WARN] persist sync report: %v", err)
		return &report
	}
	return saved
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) zone() *time.Location {
	if s.Zone != nil {
		return s.Zone
	}
	return time.UTC
}
