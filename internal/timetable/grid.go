package timetable

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultDayBlockRows is how many physical rows one day occupies in the
// grid: two course rows interleaved with two professor rows, because the
// timetable runs two concurrent sessions per day per time column.
const DefaultDayBlockRows = 4

var (
	weekTokenPattern = regexp.MustCompile(`(?i)\bweek\s*(\d+)\b`)
	datePattern      = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{4})\s*$`)
)

// dayVocabulary maps the day spellings the grid's editors actually type,
// including the recurring misspellings, to canonical day names.
var dayVocabulary = map[string]string{
	"monday":    "Monday",
	"mon":       "Monday",
	"mondy":     "Monday",
	"munday":    "Monday",
	"tuesday":   "Tuesday",
	"tue":       "Tuesday",
	"tues":      "Tuesday",
	"tusday":    "Tuesday",
	"tuseday":   "Tuesday",
	"teusday":   "Tuesday",
	"wednesday": "Wednesday",
	"wed":       "Wednesday",
	"weds":      "Wednesday",
	"wednsday":  "Wednesday",
	"wenesday":  "Wednesday",
	"wedensday": "Wednesday",
	"thursday":  "Thursday",
	"thu":       "Thursday",
	"thur":      "Thursday",
	"thurs":     "Thursday",
	"thusday":   "Thursday",
	"thrusday":  "Thursday",
	"friday":    "Friday",
	"fri":       "Friday",
	"firday":    "Friday",
	"fryday":    "Friday",
	"saturday":  "Saturday",
	"sat":       "Saturday",
	"satuday":   "Saturday",
	"sunday":    "Sunday",
	"sun":       "Sunday",
}

// ParseDate parses the grid's D/M/YYYY date cells. The grid is day-first:
// "14/2/2026" is the 14th of February, never the 2nd of month 14.
func ParseDate(s string) (time.Time, error) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a d/m/yyyy date: %q", s)
	}
	day := atoi(m[1])
	month := atoi(m[2])
	year := atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date out of range: %q", s)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// matchDay resolves a column-B cell against the day vocabulary.
func matchDay(cell string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(cell))
	key = strings.TrimRight(key, ".:")
	day, ok := dayVocabulary[key]
	return day, ok
}

// Parser turns a raw weekly grid into schedule events.
//
// DayBlockRows overrides the physical rows per day block (default 4, must be
// even; each pair is a course row over a professor row). Selection limits
// emission to the listed course codes; nil emits every recognized course,
// with combined-section lines contributing one event per listed section.
type Parser struct {
	DayBlockRows int
	Selection    []string
}

// Events walks the grid top to bottom, carrying the current week and date
// from column A, and processes a day block at every row whose column B names
// a day. Events are emitted without IDs or cancellation state; Normalize
// stamps both.
func (p Parser) Events(grid [][]string) []ScheduleEvent {
	slots := ParseTimeSlots(grid)
	if len(slots) == 0 {
		return nil
	}

	blockRows := p.DayBlockRows
	if blockRows <= 0 {
		blockRows = DefaultDayBlockRows
	}

	selected := selectionSet(p.Selection)

	var (
		events      []ScheduleEvent
		currentWeek int
		currentDate time.Time
	)

	for row := 0; row < len(grid); row++ {
		cells := grid[row]
		if len(cells) > 0 {
			if m := weekTokenPattern.FindStringSubmatch(cells[0]); m != nil {
				currentWeek = atoi(m[1])
			}
			if d, err := ParseDate(cells[0]); err == nil {
				currentDate = d
			}
		}

		if len(cells) < 2 {
			continue
		}
		day, ok := matchDay(cells[1])
		if !ok {
			continue
		}
		// A day block without a date has no event identity to offer; skip it
		// rather than emit events that cannot be keyed.
		if currentDate.IsZero() {
			continue
		}

		for offset := 0; offset+1 < blockRows; offset += 2 {
			courseRow := row + offset
			professorRow := row + offset + 1
			if courseRow >= len(grid) {
				break
			}
			events = append(events, pairEvents(grid, courseRow, professorRow, slots, selected, day, currentWeek, currentDate)...)
		}
	}

	return events
}

// pairEvents reads one course row against its professor row.
func pairEvents(grid [][]string, courseRow, professorRow int, slots []TimeSlot, selected map[string]bool, day string, week int, date time.Time) []ScheduleEvent {
	cells := grid[courseRow]
	limit := len(cells)
	if max := len(slots) + gridDataStartCol; limit > max {
		limit = max
	}

	var professorCells []string
	if professorRow < len(grid) {
		professorCells = grid[professorRow]
	}

	var events []ScheduleEvent
	for col := gridDataStartCol; col < limit; col++ {
		text := strings.TrimSpace(cells[col])
		if text == "" {
			continue
		}

		professorText := ""
		if col < len(professorCells) {
			professorText = professorCells[col]
		}

		events = append(events, cellEvents(text, professorText, selected, CellRef{Row: courseRow, Col: col}, slots[col-gridDataStartCol], day, week, date)...)
	}
	return events
}

// cellEvents tokenizes one cell into events, pairing each course line with
// the professor line of the same index.
func cellEvents(text, professorText string, selected map[string]bool, cell CellRef, slot TimeSlot, day string, week int, date time.Time) []ScheduleEvent {
	lines := splitCellLines(text)
	professors := splitCellLines(professorText)

	var events []ScheduleEvent
	for i, line := range lines {
		parsed, ok := parseCourseLine(line)
		if !ok {
			continue
		}
		for _, course := range parsed.resolve(selected) {
			events = append(events, ScheduleEvent{
				CourseCode: course.Code,
				CourseName: course.Name,
				Section:    course.Section,
				Location:   course.Location,
				Professor:  professorForLine(professors, i),
				Date:       date,
				Slot:       slot,
				Week:       week,
				Day:        day,
				Status:     StatusActive,
				Cell:       cell,
			})
		}
	}
	return events
}

// professorForLine pairs course line i with professor line i, falling back
// to the first professor line, then to empty.
func professorForLine(professors []string, i int) string {
	if i < len(professors) {
		if p := strings.TrimSpace(professors[i]); p != "" {
			return p
		}
	}
	if len(professors) > 0 {
		return strings.TrimSpace(professors[0])
	}
	return ""
}

func splitCellLines(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func selectionSet(selection []string) map[string]bool {
	if selection == nil {
		return nil
	}
	set := make(map[string]bool, len(selection))
	for _, code := range selection {
		set[code] = true
	}
	return set
}
