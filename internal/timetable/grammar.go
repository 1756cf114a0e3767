package timetable

import (
	"regexp"
	"strings"
)

// Course lines come in three shapes, tried strictly in this order:
//
//	combined  "SA-A and B (PT-2-4)"   one physical session shared by two sections
//	multi     "CS101-A (Room1)"       one section of a sectioned course
//	single    "Calculus (M-201)"      a course with no sections, implied section 1
//
// The order matters: every combined line also parses as a multi line with a
// mangled section, and every multi line also parses as a single line whose
// name swallows the section suffix.
var (
	combinedSectionPattern = regexp.MustCompile(`^\s*(.+?)\s*-\s*([A-Za-z0-9]{1,2})\s+and\s+([A-Za-z0-9]{1,2})\s*\(\s*(.+?)\s*\)\s*$`)
	multiSectionPattern    = regexp.MustCompile(`^\s*(.+?)\s*-\s*([A-Za-z0-9]{1,2})\s*\(\s*(.+?)\s*\)\s*$`)
	singleSectionPattern   = regexp.MustCompile(`^\s*(.+?)\s*\(\s*(.+?)\s*\)\s*$`)
)

// defaultSection is the implied section of a course written without one.
const defaultSection = "1"

type lineKind int

const (
	lineCombined lineKind = iota
	lineMulti
	lineSingle
)

// courseLine is one recognized line of a grid cell. Sections holds two
// entries for combined lines, in listed order, and one otherwise.
type courseLine struct {
	kind     lineKind
	name     string
	sections []string
	location string
}

// parseCourseLine matches a cell line against the grammar. Lines that fit
// none of the three shapes (room notes, "LUNCH BREAK", stray text) are
// reported as non-matches, not errors.
func parseCourseLine(line string) (courseLine, bool) {
	if m := combinedSectionPattern.FindStringSubmatch(line); m != nil {
		return courseLine{
			kind:     lineCombined,
			name:     m[1],
			sections: []string{m[2], m[3]},
			location: m[4],
		}, true
	}

	if m := multiSectionPattern.FindStringSubmatch(line); m != nil {
		return courseLine{
			kind:     lineMulti,
			name:     m[1],
			sections: []string{m[2]},
			location: m[3],
		}, true
	}

	if m := singleSectionPattern.FindStringSubmatch(line); m != nil {
		// Disambiguation guard: "CS101- (Room1)" is a multi-section line
		// missing its letter, not a course named "CS101-".
		if strings.HasSuffix(strings.TrimSpace(m[1]), "-") {
			return courseLine{}, false
		}
		return courseLine{
			kind:     lineSingle,
			name:     m[1],
			sections: []string{defaultSection},
			location: m[2],
		}, true
	}

	return courseLine{}, false
}

// code returns the canonical course code for the i-th listed section.
func (l courseLine) code(i int) string {
	if l.kind == lineSingle {
		return l.name
	}
	return l.name + "-" + l.sections[i]
}

// course materializes the i-th listed section as a catalog entry.
func (l courseLine) course(i int) Course {
	return Course{
		Code:     l.code(i),
		Name:     l.name,
		Section:  l.sections[i],
		Location: l.location,
	}
}

// resolve picks the section of this line that the selection asks for.
//
// Combined lines identify as whichever of their two codes is selected; when
// both are selected the first listed section wins, so a shared session never
// produces two events for one subscriber. A nil selection accepts everything
// and resolves combined lines to every listed section, which is the catalog
// ingestion mode: downstream per-subscriber filtering re-applies the
// first-listed precedence.
func (l courseLine) resolve(selected map[string]bool) []Course {
	if selected == nil {
		courses := make([]Course, 0, len(l.sections))
		for i := range l.sections {
			courses = append(courses, l.course(i))
		}
		return courses
	}

	for i := range l.sections {
		if selected[l.code(i)] {
			return []Course{l.course(i)}
		}
	}
	return nil
}
