package timetable

// Courses extracts the global course catalog from the full grid, matching
// every cell line against the grammar with no selection filter. Combined
// lines contribute both of their sections. The result is deduplicated by
// code (first seen wins) and sorted by code.
func Courses(grid [][]string) []Course {
	var courses []Course
	for _, row := range grid {
		for _, cell := range row {
			for _, line := range splitCellLines(cell) {
				parsed, ok := parseCourseLine(line)
				if !ok {
					continue
				}
				for i := range parsed.sections {
					courses = append(courses, parsed.course(i))
				}
			}
		}
	}
	return DedupCourses(courses)
}
