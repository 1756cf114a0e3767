package timetable

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Header detection scans a bounded prefix of the grid: real sheets carry
// title banners, term labels and legends above the slot header, but never
// forty rows of them.
const (
	maxHeaderScanRows = 40
	minHeaderSlots    = 5
	gridDataStartCol  = 2
)

var timeRangePattern = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*[AP]M)\s*-\s*(\d{1,2}:\d{2}\s*[AP]M)`)

// ParseTimeSlots locates the slot header row and returns its slots in column
// order. A row qualifies only if at least minHeaderSlots cells from column
// gridDataStartCol onward contain a time range; the first qualifying row
// wins. Cells are allowed to carry prefix text ("Fall 2026  9:00AM - 12:10PM"),
// so the last range in each cell is the one kept. No qualifying row yields an
// empty slice, which downstream stages treat as "no events producible".
func ParseTimeSlots(grid [][]string) []TimeSlot {
	limit := len(grid)
	if limit > maxHeaderScanRows {
		limit = maxHeaderScanRows
	}

	for row := 0; row < limit; row++ {
		slots := slotsInRow(grid[row])
		if len(slots) >= minHeaderSlots {
			return slots
		}
	}
	return nil
}

func slotsInRow(row []string) []TimeSlot {
	var slots []TimeSlot
	for col := gridDataStartCol; col < len(row); col++ {
		matches := timeRangePattern.FindAllStringSubmatch(row[col], -1)
		if len(matches) == 0 {
			continue
		}
		last := matches[len(matches)-1]
		slots = append(slots, TimeSlot{
			Start: canonicalClock(last[1]),
			End:   canonicalClock(last[2]),
		})
	}
	return slots
}

// canonicalClock normalizes a matched display time to upper case with no
// interior spaces ("9:00 am" -> "9:00AM") so slot strings compare and hash
// consistently across grid revisions.
func canonicalClock(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

var clockFormats = []string{
	"3:04PM",
	"15:04",
	"3:04 PM",
}

// ParseClock parses a display time like "9:00AM" into a wall-clock value on
// the zero date.
func ParseClock(s string) (time.Time, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty clock value")
	}

	for _, format := range clockFormats {
		if t, err := time.Parse(format, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid clock value: %s", s)
}

// SlotInterval resolves a slot's start and end on a concrete date in loc.
// Slots never span midnight; an end that parses earlier than its start is
// reported as an error rather than silently producing a negative interval.
func SlotInterval(slot TimeSlot, date time.Time, loc *time.Location) (start, end time.Time, err error) {
	startClock, err := ParseClock(slot.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("slot start: %w", err)
	}
	endClock, err := ParseClock(slot.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("slot end: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	start = time.Date(y, m, d, startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end = time.Date(y, m, d, endClock.Hour(), endClock.Minute(), 0, 0, loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("slot %s-%s ends before it starts", slot.Start, slot.End)
	}
	return start, end, nil
}
