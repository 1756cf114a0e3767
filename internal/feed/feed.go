// Package feed renders schedule events as an iCalendar document for
// subscribers who point a calendar app at their personal feed URL instead of
// syncing through Google Calendar.
package feed

import (
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/campustools/gridcal/internal/sync"
	"github.com/campustools/gridcal/internal/timetable"
)

const productID = "-//GridCal//Timetable Feed//EN"

// Builder turns schedule events into a serialized VCALENDAR. Zone fixes the
// wall-clock interpretation of slot times; Now is overridable for tests and
// defaults to time.Now.
type Builder struct {
	Zone *time.Location
	Name string
	Now  func() time.Time
}

// Calendar renders the given events. Events whose slot cannot be resolved to
// a concrete interval are left out.
func (b *Builder) Calendar(events []timetable.ScheduleEvent) string {
	zone := b.Zone
	if zone == nil {
		zone = time.UTC
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	stamp := now().UTC()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if b.Name != "" {
		cal.SetXWRCalName(b.Name)
	}
	cal.SetXWRTimezone(zone.String())

	for _, e := range events {
		start, end, err := timetable.SlotInterval(e.Slot, e.Date, zone)
		if err != nil {
			continue
		}

		ve := cal.AddEvent(e.ID + "@gridcal")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetSummary(sync.Summary(e))
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if desc := sync.Description(e); desc != "" {
			ve.SetDescription(desc)
		}
		if e.IsCancelled {
			ve.SetStatus(ics.ObjectStatusCancelled)
		} else {
			ve.SetStatus(ics.ObjectStatusConfirmed)
		}
	}

	return cal.Serialize()
}
