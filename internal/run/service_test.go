package run

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campustools/gridcal/internal/source"
	"github.com/campustools/gridcal/internal/store"
	appsync "github.com/campustools/gridcal/internal/sync"
	"github.com/campustools/gridcal/internal/timetable"
)

func testGrid() [][]string {
	return [][]string{
		{"Course Timetable", "", "", "", "", "", ""},
		{"", "", "9:00 AM - 12:10 PM", "1:00 PM - 4:10 PM", "4:30 PM - 7:40 PM", "8:00 AM - 9:00 AM", "5:00 PM - 6:00 PM"},
		{"Week 1", "", "", "", "", "", ""},
		{"2/2/2026", "Monday", "CS101-A (Room1)", "MATH201 (M-auditorium)", "", "", ""},
		{"", "", "Prof X", "Dr. Brown", "", "", ""},
	}
}

func storedEvent(code, location string, cancelled bool) timetable.ScheduleEvent {
	e := timetable.ScheduleEvent{
		CourseCode: code,
		CourseName: code,
		Section:    "1",
		Location:   location,
		Professor:  "Prof X",
		Date:       time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Slot:       timetable.TimeSlot{Start: "9:00AM", End: "12:10PM"},
		Day:        "Monday",
		Week:       1,
		Status:     timetable.StatusActive,
	}
	if cancelled {
		e.Status = timetable.StatusCancelled
		e.IsCancelled = true
	}
	e.ID = timetable.EventID(e.CourseCode, e.Location, e.Date, e.Slot.Start)
	return e
}

type fakeSource struct {
	snap source.Snapshot
	err  error
}

func (f fakeSource) Fetch(ctx context.Context, tab string) (source.Snapshot, error) {
	return f.snap, f.err
}

type fakeCourses struct {
	mu     stdsync.Mutex
	stored []timetable.Course
}

func (f *fakeCourses) ReplaceAll(ctx context.Context, courses []timetable.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = courses
	return nil
}

func (f *fakeCourses) List(ctx context.Context) ([]timetable.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

type fakeEvents struct {
	mu         stdsync.Mutex
	stored     []timetable.ScheduleEvent
	replaceErr error
}

func (f *fakeEvents) ReplaceAll(ctx context.Context, events []timetable.ScheduleEvent) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = events
	return nil
}

func (f *fakeEvents) List(ctx context.Context, filter store.EventFilter) ([]timetable.ScheduleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []timetable.ScheduleEvent
	for _, e := range f.stored {
		if !filter.IncludeCancelled && e.IsCancelled {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeSubscribers struct {
	mu          stdsync.Mutex
	subs        []store.Subscriber
	calendarIDs map[uuid.UUID]string
}

func (f *fakeSubscribers) Create(ctx context.Context, sub store.Subscriber) (*store.Subscriber, error) {
	return nil, errors.New("not used")
}

func (f *fakeSubscribers) GetByID(ctx context.Context, id uuid.UUID) (*store.Subscriber, error) {
	return nil, store.ErrNotFound
}

func (f *fakeSubscribers) GetByEmail(ctx context.Context, email string) (*store.Subscriber, error) {
	return nil, store.ErrNotFound
}

func (f *fakeSubscribers) List(ctx context.Context, onlyActive bool) ([]store.Subscriber, error) {
	return f.subs, nil
}

func (f *fakeSubscribers) UpdateCourses(ctx context.Context, id uuid.UUID, courses []string) error {
	return nil
}

func (f *fakeSubscribers) SetCalendarID(ctx context.Context, id uuid.UUID, calendarID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calendarIDs == nil {
		f.calendarIDs = map[uuid.UUID]string{}
	}
	f.calendarIDs[id] = calendarID
	return nil
}

func (f *fakeSubscribers) SetFeedTokenHash(ctx context.Context, id uuid.UUID, hash string) error {
	return nil
}

func (f *fakeSubscribers) Deactivate(ctx context.Context, id uuid.UUID) error {
	return nil
}

type fakeReports struct {
	mu       stdsync.Mutex
	inserted []store.SyncReport
}

func (f *fakeReports) Insert(ctx context.Context, report store.SyncReport) (*store.SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, report)
	return &report, nil
}

func (f *fakeReports) ListRecent(ctx context.Context, limit int) ([]store.SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserted, nil
}

type fakeCalendar struct {
	mu        stdsync.Mutex
	ensureID  string
	ensureErr error
	remote    []appsync.RemoteEvent
	listErr   error

	created []string
	updated []string
	deleted []string
}

func (f *fakeCalendar) EnsureCalendar(ctx context.Context, name string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return f.ensureID, nil
}

func (f *fakeCalendar) Events(ctx context.Context, calendarID string, from, to time.Time) ([]appsync.RemoteEvent, error) {
	return f.remote, f.listErr
}

func (f *fakeCalendar) Create(ctx context.Context, calendarID string, event timetable.ScheduleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event.ID)
	return nil
}

func (f *fakeCalendar) Update(ctx context.Context, calendarID string, providerID string, event timetable.ScheduleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, providerID)
	return nil
}

func (f *fakeCalendar) Delete(ctx context.Context, calendarID string, providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, providerID)
	return nil
}

type fixture struct {
	courses *fakeCourses
	events  *fakeEvents
	subs    *fakeSubscribers
	reports *fakeReports
}

func newTestService(src source.Source, cal Calendar) (*Service, *fixture) {
	f := &fixture{
		courses: &fakeCourses{},
		events:  &fakeEvents{},
		subs:    &fakeSubscribers{},
		reports: &fakeReports{},
	}
	svc := &Service{
		Source: src,
		Store: &store.Store{
			Courses:     f.courses,
			Events:      f.events,
			Subscribers: f.subs,
			Reports:     f.reports,
		},
		Calendar:     cal,
		Zone:         time.UTC,
		DayBlockRows: 2,
		BatchSize:    2,
		PastDays:     7,
		FutureDays:   60,
		Now:          func() time.Time { return time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC) },
	}
	return svc, f
}

func TestIngestStoresSnapshot(t *testing.T) {
	svc, f := newTestService(fakeSource{snap: source.Snapshot{Grid: testGrid(), HasStyles: true}}, nil)

	report, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(f.courses.stored) != 2 {
		t.Errorf("stored %d courses, want 2: %+v", len(f.courses.stored), f.courses.stored)
	}
	if len(f.events.stored) != 2 {
		t.Fatalf("stored %d events, want 2: %+v", len(f.events.stored), f.events.stored)
	}
	for _, e := range f.events.stored {
		if e.ID == "" {
			t.Errorf("event not stamped with ID: %+v", e)
		}
	}

	if report.Kind != store.ReportKindIngest || report.Courses != 2 || report.Events != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Error != "" {
		t.Errorf("unexpected report error: %q", report.Error)
	}
	if len(f.reports.inserted) != 1 {
		t.Errorf("report not persisted")
	}
}

func TestIngestFailurePersistsReport(t *testing.T) {
	svc, f := newTestService(fakeSource{err: errors.New("sheet unreachable")}, nil)

	report, err := svc.Ingest(context.Background())
	if err == nil {
		t.Fatalf("expected ingest error")
	}
	if report == nil || report.Error == "" {
		t.Fatalf("failure not recorded in report: %+v", report)
	}
	if len(f.reports.inserted) != 1 {
		t.Errorf("failed run must still insert a report")
	}
}

func TestSyncSubscriberCreatesCalendarAndEvents(t *testing.T) {
	cal := &fakeCalendar{ensureID: "cal-1"}
	svc, f := newTestService(fakeSource{}, cal)

	f.events.stored = []timetable.ScheduleEvent{
		storedEvent("CS101-A", "Room1", false),
		storedEvent("MATH201", "M-auditorium", false),
		storedEvent("PHYS110", "Lab-3", true),
	}

	sub := store.Subscriber{
		ID:      uuid.New(),
		Email:   "a@example.edu",
		Courses: []string{"CS101-A", "PHYS110"},
		Active:  true,
	}

	report, err := svc.SyncSubscriber(context.Background(), sub)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if got := f.subs.calendarIDs[sub.ID]; got != "cal-1" {
		t.Errorf("calendar id not saved, got %q", got)
	}
	if len(cal.created) != 1 || cal.created[0] != storedEvent("CS101-A", "Room1", false).ID {
		t.Errorf("unexpected creates: %v", cal.created)
	}
	if report.Created != 1 || report.Deleted != 0 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.SubscriberID == nil || *report.SubscriberID != sub.ID {
		t.Errorf("report not linked to subscriber: %+v", report)
	}
}

func TestSyncSubscriberDeletesUnclaimedRemote(t *testing.T) {
	cal := &fakeCalendar{
		ensureID: "cal-1",
		remote: []appsync.RemoteEvent{{
			ProviderID:      "g-stale",
			Summary:         "OLD101",
			ScheduleEventID: "OLD101|Room9|2026-01-12|9:00AM",
			CourseCode:      "OLD101",
			Start:           time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
		}},
	}
	svc, f := newTestService(fakeSource{}, cal)
	f.events.stored = []timetable.ScheduleEvent{storedEvent("CS101-A", "Room1", false)}

	sub := store.Subscriber{
		ID:         uuid.New(),
		Email:      "a@example.edu",
		CalendarID: "cal-1",
		Courses:    []string{"CS101-A"},
		Active:     true,
	}

	report, err := svc.SyncSubscriber(context.Background(), sub)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if len(cal.deleted) != 1 || cal.deleted[0] != "g-stale" {
		t.Errorf("stale remote not deleted: %v", cal.deleted)
	}
	if len(cal.created) != 1 {
		t.Errorf("missing create: %v", cal.created)
	}
	if report.Created != 1 || report.Deleted != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestSyncSubscriberDeactivatedClearsRemote(t *testing.T) {
	cal := &fakeCalendar{
		remote: []appsync.RemoteEvent{{
			ProviderID:      "g-1",
			Summary:         "CS101-A",
			ScheduleEventID: storedEvent("CS101-A", "Room1", false).ID,
			CourseCode:      "CS101-A",
			Start:           time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
		}},
	}
	svc, f := newTestService(fakeSource{}, cal)
	f.events.stored = []timetable.ScheduleEvent{storedEvent("CS101-A", "Room1", false)}

	sub := store.Subscriber{
		ID:         uuid.New(),
		Email:      "a@example.edu",
		CalendarID: "cal-1",
		Courses:    []string{"CS101-A"},
		Active:     false,
	}

	report, err := svc.SyncSubscriber(context.Background(), sub)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if len(cal.deleted) != 1 || cal.deleted[0] != "g-1" {
		t.Errorf("mirrored events not cleared: %v", cal.deleted)
	}
	if len(cal.created) != 0 {
		t.Errorf("deactivated subscriber received creates: %v", cal.created)
	}
	if report.Deleted != 1 || report.Events != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestSyncSubscriberDeactivatedWithoutCalendar(t *testing.T) {
	cal := &fakeCalendar{ensureID: "cal-9"}
	svc, f := newTestService(fakeSource{}, cal)

	sub := store.Subscriber{ID: uuid.New(), Email: "a@example.edu", Courses: []string{"CS101-A"}, Active: false}

	report, err := svc.SyncSubscriber(context.Background(), sub)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(f.subs.calendarIDs) != 0 {
		t.Errorf("calendar created for deactivated subscriber: %v", f.subs.calendarIDs)
	}
	if report.Created != 0 || report.Deleted != 0 {
		t.Errorf("unexpected operations: %+v", report)
	}
}

func TestSyncSubscriberWithoutCalendarConfigured(t *testing.T) {
	svc, _ := newTestService(fakeSource{}, nil)

	sub := store.Subscriber{ID: uuid.New(), Email: "a@example.edu", Courses: []string{"CS101-A"}, Active: true}
	if _, err := svc.SyncSubscriber(context.Background(), sub); err == nil {
		t.Fatalf("expected error when calendar sync is not configured")
	}
}

func TestSyncAllIsolatesSubscriberFailures(t *testing.T) {
	cal := &fakeCalendar{ensureErr: errors.New("quota exceeded")}
	svc, f := newTestService(fakeSource{snap: source.Snapshot{Grid: testGrid(), HasStyles: true}}, cal)

	broken := store.Subscriber{ID: uuid.New(), Email: "broken@example.edu", Courses: []string{"CS101-A"}, Active: true}
	healthy := store.Subscriber{ID: uuid.New(), Email: "ok@example.edu", CalendarID: "cal-2", Courses: []string{"MATH201"}, Active: true}
	f.subs.subs = []store.Subscriber{broken, healthy}

	reports, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected ingest + 2 subscriber reports, got %d", len(reports))
	}
	if reports[1].Error == "" {
		t.Errorf("broken subscriber error not recorded: %+v", reports[1])
	}
	if reports[2].Error != "" || reports[2].Created != 1 {
		t.Errorf("healthy subscriber not synced: %+v", reports[2])
	}
}

func TestSyncAllWithoutCalendar(t *testing.T) {
	svc, f := newTestService(fakeSource{snap: source.Snapshot{Grid: testGrid(), HasStyles: true}}, nil)
	f.subs.subs = []store.Subscriber{{ID: uuid.New(), Email: "a@example.edu", Courses: []string{"CS101-A"}, Active: true}}

	reports, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if len(reports) != 1 || reports[0].Kind != store.ReportKindIngest {
		t.Fatalf("expected ingest-only run, got %+v", reports)
	}
}

func TestWindowAlignsToDayBoundaries(t *testing.T) {
	svc, _ := newTestService(fakeSource{}, nil)
	svc.Now = func() time.Time { return time.Date(2026, 2, 2, 17, 45, 0, 0, time.UTC) }

	from, to := svc.window()
	if !from.Equal(time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}
	if !to.Equal(time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v", to)
	}
}
