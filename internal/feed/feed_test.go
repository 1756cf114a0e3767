package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/campustools/gridcal/internal/timetable"
)

func sampleEvent(code, location string) timetable.ScheduleEvent {
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
	e.ID = timetable.EventID(e.CourseCode, e.Location, e.Date, e.Slot.Start)
	return e
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	zone := time.FixedZone("EAT", 3*60*60)
	return &Builder{
		Zone: zone,
		Name: "CS101 timetable",
		Now:  func() time.Time { return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func TestCalendarRendersEvents(t *testing.T) {
	b := testBuilder(t)
	out := b.Calendar([]timetable.ScheduleEvent{sampleEvent("CS101-A", "Room1")})

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"METHOD:PUBLISH",
		"PRODID:-//GridCal//Timetable Feed//EN",
		"BEGIN:VEVENT",
		"UID:CS101-A|Room1|2026-02-02|9:00AM@gridcal",
		"DTSTAMP:20260210T120000Z",
		"DTSTART:20260202T060000Z",
		"DTEND:20260202T091000Z",
		"SUMMARY:CS101-A",
		"LOCATION:Room1",
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q:\n%s", want, out)
		}
	}
}

func TestCalendarSkipsUnresolvableSlots(t *testing.T) {
	b := testBuilder(t)
	bad := sampleEvent("CS101-A", "Room1")
	bad.Slot = timetable.TimeSlot{Start: "noon", End: "later"}

	out := b.Calendar([]timetable.ScheduleEvent{bad, sampleEvent("MATH201", "M-auditorium")})

	if got := strings.Count(out, "BEGIN:VEVENT"); got != 1 {
		t.Fatalf("expected 1 event, got %d:\n%s", got, out)
	}
	if !strings.Contains(out, "SUMMARY:MATH201") {
		t.Errorf("surviving event missing:\n%s", out)
	}
}

func TestCalendarMarksCancelled(t *testing.T) {
	b := testBuilder(t)
	e := sampleEvent("PHYS110", "Lab-3")
	e.Status = timetable.StatusCancelled
	e.IsCancelled = true

	out := b.Calendar([]timetable.ScheduleEvent{e})

	if !strings.Contains(out, "STATUS:CANCELLED") {
		t.Errorf("cancelled status not rendered:\n%s", out)
	}
}

func TestCalendarEmptyInput(t *testing.T) {
	b := testBuilder(t)
	out := b.Calendar(nil)

	if strings.Contains(out, "BEGIN:VEVENT") {
		t.Errorf("expected no events:\n%s", out)
	}
	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Errorf("expected calendar envelope:\n%s", out)
	}
}
