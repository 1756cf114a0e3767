package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/campustools/gridcal/internal/timetable"
)

func TestListCourses(t *testing.T) {
	h, f := newTestHandler()
	f.courses.courses = catalog("CS101-A", "MATH201")

	w := httptest.NewRecorder()
	h.ListCourses(w, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("ListCourses() status = %d, want %d", w.Code, http.StatusOK)
	}
	var got []timetable.Course
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || got[0].Code != "CS101-A" {
		t.Errorf("ListCourses() = %+v, want 2 courses starting with CS101-A", got)
	}
}

func TestListCoursesEmptyCatalog(t *testing.T) {
	h, _ := newTestHandler()

	w := httptest.NewRecorder()
	h.ListCourses(w, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("ListCourses() status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("ListCourses() body = %q, want []", body)
	}
}

func TestListEventsPassesFilter(t *testing.T) {
	h, f := newTestHandler()
	f.events.events = []timetable.ScheduleEvent{
		scheduleEvent("CS101-A", "Room1", false),
		scheduleEvent("MATH201", "M-auditorium", false),
	}

	target := "/api/events?from=2026-02-01&to=2026-03-01&courses=CS101-A,MATH201&include_cancelled=true"
	w := httptest.NewRecorder()
	h.ListEvents(w, httptest.NewRequest(http.MethodGet, target, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("ListEvents() status = %d, want %d", w.Code, http.StatusOK)
	}

	filter := f.events.lastFilter
	if got := filter.From.Format("2006-01-02"); got != "2026-02-01" {
		t.Errorf("filter.From = %s, want 2026-02-01", got)
	}
	if got := filter.To.Format("2006-01-02"); got != "2026-03-01" {
		t.Errorf("filter.To = %s, want 2026-03-01", got)
	}
	if want := []string{"CS101-A", "MATH201"}; !reflect.DeepEqual(filter.Courses, want) {
		t.Errorf("filter.Courses = %v, want %v", filter.Courses, want)
	}
	if !filter.IncludeCancelled {
		t.Error("filter.IncludeCancelled = false, want true")
	}

	var got []timetable.ScheduleEvent
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ListEvents() returned %d events, want 2", len(got))
	}
}

func TestListEventsDefaultsExcludeCancelled(t *testing.T) {
	h, f := newTestHandler()
	f.events.events = []timetable.ScheduleEvent{
		scheduleEvent("CS101-A", "Room1", false),
		scheduleEvent("PHYS110", "Lab2", true),
	}

	w := httptest.NewRecorder()
	h.ListEvents(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("ListEvents() status = %d, want %d", w.Code, http.StatusOK)
	}
	var got []timetable.ScheduleEvent
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].CourseCode != "CS101-A" {
		t.Errorf("ListEvents() = %+v, want only CS101-A", got)
	}
}

func TestListEventsRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"bad from date", "/api/events?from=02/01/2026"},
		{"bad to date", "/api/events?to=soon"},
		{"bad include_cancelled", "/api/events?include_cancelled=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler()
			w := httptest.NewRecorder()
			h.ListEvents(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if w.Code != http.StatusBadRequest {
				t.Errorf("ListEvents() status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestParseEventFilterEmptyQuery(t *testing.T) {
	filter, err := parseEventFilter(httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if err != nil {
		t.Fatalf("parseEventFilter() error = %v", err)
	}
	if !filter.From.IsZero() || !filter.To.IsZero() {
		t.Errorf("parseEventFilter() bounds = %v..%v, want zero values", filter.From, filter.To)
	}
	if filter.Courses != nil {
		t.Errorf("parseEventFilter() courses = %v, want nil", filter.Courses)
	}
	if filter.IncludeCancelled {
		t.Error("parseEventFilter() IncludeCancelled = true, want false")
	}
}
