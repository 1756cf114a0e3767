package gcal

import (
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/campustools/gridcal/internal/timetable"
)

func testEvent() timetable.ScheduleEvent {
	e := timetable.ScheduleEvent{
		CourseCode: "CS101-A",
		CourseName: "CS101",
		Section:    "A",
		Location:   "Room1",
		Professor:  "Prof X",
		Date:       time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Slot:       timetable.TimeSlot{Start: "9:00AM", End: "12:10PM"},
		Day:        "Monday",
		Week:       1,
	}
	e.ID = timetable.EventID(e.CourseCode, e.Location, e.Date, e.Slot.Start)
	return e
}

func TestBuildEvent(t *testing.T) {
	zone := time.FixedZone("EAT", 3*60*60)
	c := &Client{zone: zone}

	ev, err := c.buildEvent(testEvent())
	if err != nil {
		t.Fatalf("build event: %v", err)
	}

	if ev.Summary != "CS101-A" || ev.Location != "Room1" {
		t.Errorf("summary/location = %q / %q", ev.Summary, ev.Location)
	}
	if ev.Start.DateTime != "2026-02-02T09:00:00+03:00" {
		t.Errorf("start = %q", ev.Start.DateTime)
	}
	if ev.End.DateTime != "2026-02-02T12:10:00+03:00" {
		t.Errorf("end = %q", ev.End.DateTime)
	}

	private := ev.ExtendedProperties.Private
	if private[propScheduleEventID] != "CS101-A|Room1|2026-02-02|9:00AM" {
		t.Errorf("scheduleEventId = %q", private[propScheduleEventID])
	}
	if private[propCourseCode] != "CS101-A" || private[propAppCreated] != "true" {
		t.Errorf("metadata = %v", private)
	}
}

func TestBuildEventRejectsBadSlot(t *testing.T) {
	c := &Client{zone: time.UTC}
	e := testEvent()
	e.Slot = timetable.TimeSlot{Start: "sometime", End: "later"}

	if _, err := c.buildEvent(e); err == nil {
		t.Fatal("expected error for unparseable slot")
	}
}

func TestRemoteFromItem(t *testing.T) {
	item := &calendar.Event{
		Id:          "g1",
		Summary:     "CS101-A",
		Location:    "Room1",
		Description: "Professor: Prof X",
		Start:       &calendar.EventDateTime{DateTime: "2026-02-02T09:00:00+03:00"},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				propScheduleEventID: "CS101-A|Room1|2026-02-02|9:00AM",
				propCourseCode:      "CS101-A",
				propAppCreated:      "true",
			},
		},
	}

	rec := remoteFromItem(item)
	if rec.ProviderID != "g1" || rec.ScheduleEventID != "CS101-A|Room1|2026-02-02|9:00AM" || rec.CourseCode != "CS101-A" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.Start.Equal(time.Date(2026, 2, 2, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", rec.Start)
	}
}

func TestRemoteFromItemWithoutMetadata(t *testing.T) {
	rec := remoteFromItem(&calendar.Event{Id: "g2", Summary: "CS101-A"})
	if rec.ScheduleEventID != "" || rec.CourseCode != "" {
		t.Errorf("expected empty metadata, got %+v", rec)
	}
}

func TestIsGone(t *testing.T) {
	if !isGone(&googleapi.Error{Code: http.StatusNotFound}) {
		t.Error("404 should count as gone")
	}
	if !isGone(&googleapi.Error{Code: http.StatusGone}) {
		t.Error("410 should count as gone")
	}
	if isGone(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Error("403 is a real failure")
	}
	if isGone(nil) {
		t.Error("nil error is not gone")
	}
}
