package timetable

import "sort"

// Normalize stamps deterministic IDs onto parsed events and applies the
// cancellation map by the grid cell each event came from. Events carrying an
// already-seen ID are dropped, first occurrence wins: the ID is the store's
// primary key, and editors do paste the same course line twice. A nil map
// marks nothing cancelled, which is the live-document path where no style
// side-channel exists.
func Normalize(events []ScheduleEvent, cancelled map[CellRef]bool) []ScheduleEvent {
	seen := make(map[string]bool, len(events))
	out := events[:0]
	for i := range events {
		e := &events[i]
		e.ID = EventID(e.CourseCode, e.Location, e.Date, e.Slot.Start)
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		if cancelled[e.Cell] {
			e.IsCancelled = true
			e.Status = StatusCancelled
		} else if e.Status == "" {
			e.Status = StatusActive
		}
		out = append(out, *e)
	}
	return out
}

// DedupCourses collapses duplicate course codes keeping the first-seen name,
// section and location, and returns the set sorted alphabetically by code.
func DedupCourses(courses []Course) []Course {
	seen := make(map[string]bool, len(courses))
	out := make([]Course, 0, len(courses))
	for _, c := range courses {
		if c.Code == "" || seen[c.Code] {
			continue
		}
		seen[c.Code] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ActiveForSelection filters canonical events down to one subscriber's
// selected courses, excluding cancelled events, and collapses combined
// sections that share a physical session: events with the same course name,
// date, start and location are one session listed under two section codes,
// and the first listed section wins.
func ActiveForSelection(events []ScheduleEvent, selection []string) []ScheduleEvent {
	selected := selectionSet(selection)
	if selected == nil {
		selected = map[string]bool{}
	}

	type sessionKey struct {
		name     string
		date     string
		start    string
		location string
	}
	taken := make(map[sessionKey]bool)

	var out []ScheduleEvent
	for _, e := range events {
		if e.IsCancelled || !selected[e.CourseCode] {
			continue
		}
		key := sessionKey{e.CourseName, e.Date.Format("2006-01-02"), e.Slot.Start, e.Location}
		if taken[key] {
			continue
		}
		taken[key] = true
		out = append(out, e)
	}
	return out
}
