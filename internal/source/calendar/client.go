// Package calendar implements the calendar source adapter on top of the
// Google Calendar API. Events are normalized into source.RawRecord
// envelopes carrying a JSON EventPayload.
package calendar

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/mwain/inboxpilot/internal/auth"
	"github.com/mwain/inboxpilot/internal/google"
	"github.com/mwain/inboxpilot/internal/source"
)

const defaultMaxResults = 10

// Client wraps the Google Calendar service for one account.
type Client struct {
	svc        *calendar.Service
	id         string
	calendarID string
}

// New creates a Calendar source adapter for the given account, operating
// on the account's primary calendar.
func New(ctx context.Context, mgr *auth.Manager, account string) (*Client, error) {
	id := source.MakeID(source.BackendCalendar, account)
	httpClient := google.NewHTTPClient(auth.TokenSource(ctx, mgr, id))

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, id: id, calendarID: "primary"}, nil
}

// ID returns the source identifier, e.g. "calendar:default".
func (c *Client) ID() string {
	return c.id
}

// Kind returns source.KindEvent.
func (c *Client) Kind() source.Kind {
	return source.KindEvent
}

// List returns events within the filter's time window ordered by start
// time. A zero TimeMin defaults to now; a zero TimeMax to seven days out.
func (c *Client) List(ctx context.Context, f source.Filter) ([]source.RawRecord, error) {
	timeMin := f.TimeMin
	if timeMin.IsZero() {
		timeMin = time.Now()
	}
	timeMax := f.TimeMax
	if timeMax.IsZero() {
		timeMax = timeMin.Add(7 * 24 * time.Hour)
	}
	maxResults := f.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	call := c.svc.Events.List(c.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(int64(maxResults)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	if f.Query != "" {
		call = call.Q(f.Query)
	}

	events, err := call.Do()
	if err != nil {
		return nil, source.ClassifyError(err)
	}

	records := make([]source.RawRecord, 0, len(events.Items))
	for _, event := range events.Items {
		records = append(records, c.toRecord(event))
	}
	return records, nil
}

// Get retrieves a specific event by ID.
func (c *Client) Get(ctx context.Context, recordID string) (source.RawRecord, error) {
	event, err := c.svc.Events.Get(c.calendarID, recordID).Context(ctx).Do()
	if err != nil {
		return source.RawRecord{}, source.ClassifyError(err)
	}
	return c.toRecord(event), nil
}

// Create inserts a new event and returns its identifier.
func (c *Client) Create(ctx context.Context, input source.EventInput) (string, error) {
	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	if len(input.ReminderMinutes) > 0 {
		overrides := make([]*calendar.EventReminder, 0, len(input.ReminderMinutes))
		for _, minutes := range input.ReminderMinutes {
			overrides = append(overrides, &calendar.EventReminder{
				Method:  "popup",
				Minutes: int64(minutes),
			})
		}
		event.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", source.ClassifyError(err)
	}
	return created.Id, nil
}

func (c *Client) toRecord(event *calendar.Event) source.RawRecord {
	payload := source.EventPayload{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       eventTime(event.Start),
		End:         eventTime(event.End),
	}
	for _, a := range event.Attendees {
		payload.Attendees = append(payload.Attendees, a.Email)
	}

	return source.RawRecord{
		SourceID:  c.id,
		RecordID:  event.Id,
		Timestamp: payload.Start,
		Kind:      source.KindEvent,
		Payload:   payload.Encode(),
		Snippet:   event.Summary,
	}
}

// eventTime handles both timed and all-day events.
func eventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
