package timetable

import "time"

// EventStatus describes the lifecycle state of a schedule event.
type EventStatus string

const (
	StatusActive      EventStatus = "active"
	StatusCancelled   EventStatus = "cancelled"
	StatusRescheduled EventStatus = "rescheduled"
)

// TimeSlot is one column of the weekly grid, kept as the display strings the
// grid uses ("9:00AM"). Slot order follows column order, not clock order.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Course is one catalog entry. Code is the canonical join key: name plus
// "-" plus section for sectioned courses, or the bare name for
// single-section courses.
type Course struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Section  string `json:"section"`
	Location string `json:"location"`
}

// CellRef addresses one cell of the source grid, zero-based in both axes.
type CellRef struct {
	Row int
	Col int
}

// ScheduleEvent is a single parsed session of a course on a concrete date.
//
// ID is stamped by Normalize and is the stable join key across re-parses of
// an unchanged grid: courseCode|location|date|slotStart. Cell records where
// in the source grid the event came from so cancellation styling can be
// applied after parsing.
type ScheduleEvent struct {
	ID          string      `json:"id"`
	CourseCode  string      `json:"courseCode"`
	CourseName  string      `json:"courseName"`
	Section     string      `json:"section"`
	Location    string      `json:"location"`
	Professor   string      `json:"professor"`
	Date        time.Time   `json:"date"`
	Slot        TimeSlot    `json:"slot"`
	Week        int         `json:"week"`
	Day         string      `json:"day"`
	Status      EventStatus `json:"status"`
	IsCancelled bool        `json:"isCancelled"`

	Cell CellRef `json:"-"`
}

// EventID builds the deterministic event identifier. The date is reduced to
// its ISO calendar day so the ID survives timezone-less re-parses.
func EventID(courseCode, location string, date time.Time, slotStart string) string {
	return courseCode + "|" + location + "|" + date.Format("2006-01-02") + "|" + slotStart
}

// BaseKey is the location-independent session identity used by the
// reconciliation layer: a location change must not change the base key.
func (e ScheduleEvent) BaseKey() string {
	return BaseKey(e.CourseCode, e.Date, e.Slot.Start)
}

// BaseKey combines course code, calendar day and 24h start time. Slot starts
// that fail to parse keep their display form so the key stays deterministic.
func BaseKey(courseCode string, date time.Time, slotStart string) string {
	start := slotStart
	if t, err := ParseClock(slotStart); err == nil {
		start = t.Format("15:04")
	}
	return courseCode + "|" + date.Format("2006-01-02") + "|" + start
}
