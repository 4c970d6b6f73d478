package source

import (
	"context"
	"time"
)

// Kind identifies what a RawRecord wraps.
type Kind string

const (
	KindEmail Kind = "email"
	KindEvent Kind = "event"
)

// RawRecord is the source-agnostic envelope around one email message or
// calendar event. It is immutable once produced by an adapter; analyzers
// derive signals from it without touching the backend again.
type RawRecord struct {
	// SourceID identifies the producing source, e.g. "gmail:default".
	SourceID string `json:"sourceId"`

	// RecordID is the backend's identifier for the record.
	RecordID string `json:"recordId"`

	// Timestamp is the record's own time: the Date header for email,
	// the start time for events.
	Timestamp time.Time `json:"timestamp"`

	// Kind distinguishes email from calendar records.
	Kind Kind `json:"kind"`

	// Payload is the raw structured text of the record. For email this
	// is an RFC 2822 style header block followed by the body; for events
	// it is the serialized event. Analyzers parse it tolerantly.
	Payload string `json:"payload"`

	// Snippet is a short preview when the backend provides one.
	Snippet string `json:"snippet,omitempty"`
}

// Filter narrows a List call. Zero values mean "no constraint".
type Filter struct {
	// Query is a backend search expression (Gmail query syntax for
	// email sources, free-text match for calendars).
	Query string

	// TimeMin and TimeMax bound the record timestamps.
	TimeMin time.Time
	TimeMax time.Time

	// MaxResults caps the number of records returned. Zero means the
	// adapter's default.
	MaxResults int
}

// EventInput describes a calendar event to create.
type EventInput struct {
	Summary         string
	Description     string
	Start           time.Time
	End             time.Time
	Attendees       []string
	ReminderMinutes []int
}

// Source is the uniform read/write interface over one backend account.
// List and Get are supported by every source; Create is only meaningful
// for calendar sources and returns ErrUnsupported elsewhere.
type Source interface {
	// ID returns the source identifier, e.g. "gmail:default".
	ID() string

	// Kind returns the kind of records this source produces.
	Kind() Kind

	// List returns records matching the filter, newest first for email
	// and ordered by start time for events.
	List(ctx context.Context, f Filter) ([]RawRecord, error)

	// Get fetches a single record by its backend identifier.
	Get(ctx context.Context, recordID string) (RawRecord, error)

	// Create writes a new record and returns its backend identifier.
	Create(ctx context.Context, input EventInput) (string, error)
}
