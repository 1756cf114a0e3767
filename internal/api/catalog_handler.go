package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	httperrors "github.com/campustools/gridcal/internal/http/errors"
	"github.com/campustools/gridcal/internal/store"
	"github.com/campustools/gridcal/internal/timetable"
)

// ListCourses returns the current course catalog.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.Courses.List(r.Context())
	if err != nil {
		httperrors.InternalError(w, r, err, "list courses")
		return
	}
	if courses == nil {
		courses = []timetable.Course{}
	}
	h.writeJSON(w, r, http.StatusOK, courses)
}

// ListEvents returns stored schedule events. Supported query parameters:
// from and to (YYYY-MM-DD, to exclusive), courses (comma separated codes)
// and include_cancelled.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		httperrors.BadRequestError(w, r, err, err.Error())
		return
	}
	events, err := h.store.Events.List(r.Context(), filter)
	if err != nil {
		httperrors.InternalError(w, r, err, "list events")
		return
	}
	if events == nil {
		events = []timetable.ScheduleEvent{}
	}
	h.writeJSON(w, r, http.StatusOK, events)
}

func parseEventFilter(r *http.Request) (store.EventFilter, error) {
	var filter store.EventFilter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("invalid from date %q", v)
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("invalid to date %q", v)
		}
		filter.To = t
	}
	if v := q.Get("courses"); v != "" {
		filter.Courses = normalizeCourses(strings.Split(v, ","))
	}
	if v := q.Get("include_cancelled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid include_cancelled value %q", v)
		}
		filter.IncludeCancelled = b
	}
	return filter, nil
}
