// Package gcal wraps the Google Calendar API as the remote event provider:
// listing the records this system created, and applying single create,
// update and delete operations for the batch executor.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/campustools/gridcal/internal/sync"
	"github.com/campustools/gridcal/internal/timetable"
)

// Private extended property keys stamped onto every event this system
// writes. appCreated scopes listing to our own records; the other two feed
// the reconciliation matching tiers.
const (
	propScheduleEventID = "scheduleEventId"
	propCourseCode      = "courseCode"
	propAppCreated      = "appCreated"
)

// Client talks to one Google Calendar account using a service account key.
type Client struct {
	svc  *calendar.Service
	zone *time.Location
}

// NewClient builds a calendar client from service account credentials.
// Zone anchors the grid's wall-clock slot times; nil means UTC.
func NewClient(ctx context.Context, credentialsJSON []byte, zone *time.Location) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	svc, err := calendar.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("build calendar service: %w", err)
	}
	if zone == nil {
		zone = time.UTC
	}
	return &Client{svc: svc, zone: zone}, nil
}

// Events lists the records this system created on the calendar within
// [from, to), following pagination.
func (c *Client) Events(ctx context.Context, calendarID string, from, to time.Time) ([]sync.RemoteEvent, error) {
	call := c.svc.Events.List(calendarID).
		Context(ctx).
		PrivateExtendedProperty(propAppCreated + "=true").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(false).
		MaxResults(2500)

	var out []sync.RemoteEvent
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list events on %s: %w", calendarID, err)
		}
		for _, item := range resp.Items {
			out = append(out, remoteFromItem(item))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Create inserts a canonical event with its metadata stamped.
func (c *Client) Create(ctx context.Context, calendarID string, event timetable.ScheduleEvent) error {
	ev, err := c.buildEvent(event)
	if err != nil {
		return err
	}
	if _, err := c.svc.Events.Insert(calendarID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}
	return nil
}

// Update rewrites the provider record from the canonical event, re-stamping
// the metadata so a tier-2 or tier-3 match carries the current id afterward.
func (c *Client) Update(ctx context.Context, calendarID string, providerID string, event timetable.ScheduleEvent) error {
	ev, err := c.buildEvent(event)
	if err != nil {
		return err
	}
	if _, err := c.svc.Events.Update(calendarID, providerID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update event %s: %w", providerID, err)
	}
	return nil
}

// Delete removes a provider record. A record that is already gone counts as
// deleted, not as a failure.
func (c *Client) Delete(ctx context.Context, calendarID string, providerID string) error {
	err := c.svc.Events.Delete(calendarID, providerID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return fmt.Errorf("delete event %s: %w", providerID, err)
	}
	return nil
}

// EnsureCalendar returns the id of the calendar with the given summary,
// creating it when absent.
func (c *Client) EnsureCalendar(ctx context.Context, name string) (string, error) {
	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list calendars: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}

	created, err := c.svc.Calendars.Insert(&calendar.Calendar{
		Summary:  name,
		TimeZone: c.zone.String(),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create calendar %q: %w", name, err)
	}
	return created.Id, nil
}

func (c *Client) buildEvent(e timetable.ScheduleEvent) (*calendar.Event, error) {
	start, end, err := timetable.SlotInterval(e.Slot, e.Date, c.zone)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	return &calendar.Event{
		Summary:     sync.Summary(e),
		Location:    e.Location,
		Description: sync.Description(e),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: c.zone.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: c.zone.String(),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				propScheduleEventID: e.ID,
				propCourseCode:      e.CourseCode,
				propAppCreated:      "true",
			},
		},
	}, nil
}

func remoteFromItem(item *calendar.Event) sync.RemoteEvent {
	rec := sync.RemoteEvent{
		ProviderID:  item.Id,
		Summary:     item.Summary,
		Location:    item.Location,
		Description: item.Description,
	}
	if item.Start != nil && item.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			rec.Start = t
		}
	}
	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		rec.ScheduleEventID = item.ExtendedProperties.Private[propScheduleEventID]
		rec.CourseCode = item.ExtendedProperties.Private[propCourseCode]
	}
	return rec
}

// isGone matches the API's "already deleted" answers.
func isGone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}
