// Package sync reconciles canonical schedule events against a subscriber's
// remote calendar and applies the resulting operations in bounded batches.
package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/campustools/gridcal/internal/timetable"
)

// RemoteEvent is one provider calendar record reduced to the fields
// reconciliation compares. ScheduleEventID and CourseCode come from the
// private metadata stamped at creation; both are empty on records written
// before metadata stamping existed.
type RemoteEvent struct {
	ProviderID      string
	Summary         string
	Location        string
	Description     string
	Start           time.Time
	ScheduleEventID string
	CourseCode      string
}

// Update pairs a provider record with the canonical event that should
// overwrite it.
type Update struct {
	Target RemoteEvent
	Event  timetable.ScheduleEvent
}

// Plan is the reconciliation output. Creates and Updates never share a
// canonical event, and Deletes never contains a record an update targets.
// Skipped holds events whose slot times could not be resolved to clock
// values; they are reported, not silently dropped.
type Plan struct {
	Creates   []timetable.ScheduleEvent
	Updates   []Update
	Deletes   []RemoteEvent
	Unchanged int
	Skipped   []timetable.ScheduleEvent
}

// Empty reports whether the plan contains no operations to apply.
func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// Reconciler matches canonical events to remote records. Zone anchors the
// grid's wall-clock slot times; remote timestamps are converted into it
// before comparison so both sides derive identical keys.
type Reconciler struct {
	Zone *time.Location
}

// Plan matches each canonical event against the remote records through
// three tiers, strongest first:
//
//  1. the record stamped with the event's exact id: update it when location
//     or description drifted, otherwise leave it alone;
//  2. the record for the same course, day and start time under a different
//     location: a moved session, updated in place so subscribers never see
//     it vanish and reappear;
//  3. a record with no usable metadata whose title, day and start time
//     line up: adopted and updated.
//
// Everything canonical that no tier claims becomes a create. Every remote
// record no canonical event claimed becomes a delete: its session was
// removed from the grid, or the subscriber dropped the course. Each remote
// record is claimed at most once, so the operation sets stay disjoint.
func (r Reconciler) Plan(canonical []timetable.ScheduleEvent, remote []RemoteEvent) Plan {
	zone := r.Zone
	if zone == nil {
		zone = time.UTC
	}

	byID := make(map[string]int, len(remote))
	byBase := make(map[string]int, len(remote))
	byTitle := make(map[string]int)
	for i, rec := range remote {
		if rec.ScheduleEventID != "" {
			byID[rec.ScheduleEventID] = i
		} else {
			byTitle[remoteTitleKey(rec, zone)] = i
		}
		if rec.CourseCode != "" {
			byBase[remoteBaseKey(rec, zone)] = i
		}
	}

	claimed := make([]bool, len(remote))
	var plan Plan

	for _, e := range canonical {
		if _, _, err := timetable.SlotInterval(e.Slot, e.Date, zone); err != nil {
			plan.Skipped = append(plan.Skipped, e)
			continue
		}

		if i, ok := byID[e.ID]; ok && !claimed[i] {
			claimed[i] = true
			if remoteDiffers(remote[i], e) {
				plan.Updates = append(plan.Updates, Update{Target: remote[i], Event: e})
			} else {
				plan.Unchanged++
			}
			continue
		}

		if i, ok := byBase[e.BaseKey()]; ok && !claimed[i] {
			claimed[i] = true
			plan.Updates = append(plan.Updates, Update{Target: remote[i], Event: e})
			continue
		}

		if i, ok := byTitle[titleKey(e)]; ok && !claimed[i] {
			claimed[i] = true
			plan.Updates = append(plan.Updates, Update{Target: remote[i], Event: e})
			continue
		}

		plan.Creates = append(plan.Creates, e)
	}

	for i, rec := range remote {
		if !claimed[i] {
			plan.Deletes = append(plan.Deletes, rec)
		}
	}
	return plan
}

// remoteDiffers reports whether the stamped record drifted from its
// canonical event in the fields an update would rewrite.
func remoteDiffers(rec RemoteEvent, e timetable.ScheduleEvent) bool {
	return rec.Location != e.Location || rec.Description != Description(e)
}

// Summary renders the provider-facing event title.
func Summary(e timetable.ScheduleEvent) string {
	return e.CourseCode
}

// Description renders the provider-facing event body: the professor line
// plus the grid position the session came from.
func Description(e timetable.ScheduleEvent) string {
	var parts []string
	if e.Professor != "" {
		parts = append(parts, "Professor: "+e.Professor)
	}
	switch {
	case e.Day != "" && e.Week > 0:
		parts = append(parts, fmt.Sprintf("%s, week %d", e.Day, e.Week))
	case e.Day != "":
		parts = append(parts, e.Day)
	case e.Week > 0:
		parts = append(parts, fmt.Sprintf("Week %d", e.Week))
	}
	return strings.Join(parts, "\n")
}

func remoteBaseKey(rec RemoteEvent, zone *time.Location) string {
	t := rec.Start.In(zone)
	return rec.CourseCode + "|" + t.Format("2006-01-02") + "|" + t.Format("15:04")
}

func remoteTitleKey(rec RemoteEvent, zone *time.Location) string {
	t := rec.Start.In(zone)
	return rec.Summary + "|" + t.Format("2006-01-02") + "|" + t.Format("15:04")
}

func titleKey(e timetable.ScheduleEvent) string {
	return Summary(e) + "|" + e.Date.Format("2006-01-02") + "|" + clock24(e.Slot.Start)
}

func clock24(s string) string {
	if t, err := timetable.ParseClock(s); err == nil {
		return t.Format("15:04")
	}
	return s
}
