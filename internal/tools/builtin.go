package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mwain/inboxpilot/internal/analyze"
	"github.com/mwain/inboxpilot/internal/source"
)

// Sources hands out adapter clients per account. Implemented by the
// server context, which caches clients the way it caches credentials.
type Sources interface {
	Email(ctx context.Context, account string) (source.Source, error)
	Calendar(ctx context.Context, account string) (source.Source, error)
}

// Env carries the collaborators the builtin tools close over.
type Env struct {
	Sources Sources
	Analyze analyze.Config

	// ReadOnly withholds tools with upstream side effects.
	ReadOnly bool

	// MaxListResults caps list-style tools. Zero means 15.
	MaxListResults int
}

// EmailSummary is the list-tool view of one message.
type EmailSummary struct {
	ID      string    `json:"id"`
	From    string    `json:"from,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Date    time.Time `json:"date,omitzero"`
	Snippet string    `json:"snippet,omitempty"`
}

// EmailDetail is the full parsed form of one message.
type EmailDetail struct {
	ID         string    `json:"id"`
	From       string    `json:"from,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Recipients []string  `json:"recipients,omitempty"`
	Date       time.Time `json:"date,omitzero"`
	Body       string    `json:"body,omitempty"`
}

// EventSummary is the list-tool view of one calendar event.
type EventSummary struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start,omitzero"`
	End         time.Time `json:"end,omitzero"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// CreatedEvent is the result of create_event.
type CreatedEvent struct {
	ID string `json:"id"`
}

const defaultAccount = "default"

// RegisterBuiltins populates the registry with the assistant's closed
// tool set. Write tools are skipped in read-only mode.
func RegisterBuiltins(reg *Registry, env Env) error {
	maxResults := env.MaxListResults
	if maxResults <= 0 {
		maxResults = 15
	}

	accountArg := ArgSpec{Name: "account", Type: TypeString, Default: defaultAccount,
		Description: "Account the source is registered under"}
	maxArg := ArgSpec{Name: "max", Type: TypeInt, Default: int64(maxResults),
		Description: "Maximum number of results"}

	builtins := []*Tool{
		{
			Name:        "list_recent_email",
			Description: "List the most recent email messages with sender, subject and snippet.",
			Schema:      Schema{accountArg, maxArg},
			TTL:         2 * time.Minute,
			Backend:     source.BackendGmail,
			Operation:   "list",
			Compute: func(ctx context.Context, args Args) (any, error) {
				return listEmail(ctx, env, args, "")
			},
		},
		{
			Name:        "search_email_by_keyword",
			Description: "Search email messages matching a keyword.",
			Schema: Schema{
				{Name: "keyword", Type: TypeString, Required: true, Description: "Search expression"},
				accountArg, maxArg,
			},
			TTL:       2 * time.Minute,
			Backend:   source.BackendGmail,
			Operation: "search",
			Compute: func(ctx context.Context, args Args) (any, error) {
				return listEmail(ctx, env, args, stringArg(args, "keyword"))
			},
		},
		{
			Name:        "get_email",
			Description: "Fetch a single email message by id, fully parsed.",
			Schema: Schema{
				{Name: "id", Type: TypeString, Required: true, Description: "Message id"},
				accountArg,
			},
			TTL:       10 * time.Minute,
			Backend:   source.BackendGmail,
			Operation: "get",
			Compute: func(ctx context.Context, args Args) (any, error) {
				record, err := getEmail(ctx, env, args)
				if err != nil {
					return nil, err
				}
				meta := analyze.ExtractMetadata(record)
				return EmailDetail{
					ID:         record.RecordID,
					From:       meta.Sender,
					Subject:    meta.Subject,
					Recipients: meta.Recipients,
					Date:       meta.Date,
					Body:       meta.Body,
				}, nil
			},
		},
		{
			Name:        "parse_email",
			Description: "Parse a raw RFC 2822 email into sender, subject, recipients, date and body.",
			Schema: Schema{
				{Name: "raw", Type: TypeString, Required: true, Description: "Raw message text"},
			},
			TTL: time.Hour,
			Compute: func(ctx context.Context, args Args) (any, error) {
				return analyze.ParseEmail(stringArg(args, "raw")), nil
			},
		},
		{
			Name:        "analyze_sentiment",
			Description: "Classify the sentiment of an email message.",
			Schema: Schema{
				{Name: "id", Type: TypeString, Required: true, Description: "Message id"},
				accountArg,
			},
			TTL:       time.Hour,
			Backend:   source.BackendGmail,
			Operation: "get",
			Compute: func(ctx context.Context, args Args) (any, error) {
				record, err := getEmail(ctx, env, args)
				if err != nil {
					return nil, err
				}
				return analyze.AnalyzeSentiment(record, env.Analyze), nil
			},
		},
		{
			Name:        "extract_tasks",
			Description: "Extract actionable tasks with due hints from an email message.",
			Schema: Schema{
				{Name: "id", Type: TypeString, Required: true, Description: "Message id"},
				accountArg,
			},
			TTL:       time.Hour,
			Backend:   source.BackendGmail,
			Operation: "get",
			Compute: func(ctx context.Context, args Args) (any, error) {
				record, err := getEmail(ctx, env, args)
				if err != nil {
					return nil, err
				}
				return analyze.ExtractTasks(record, env.Analyze), nil
			},
		},
		{
			Name:        "build_agenda",
			Description: "Build a merged, time-ordered agenda for a window, optionally linking related email.",
			Schema: Schema{
				{Name: "timeMin", Type: TypeTime, Required: true, Description: "Window start (RFC 3339)"},
				{Name: "timeMax", Type: TypeTime, Required: true, Description: "Window end (RFC 3339)"},
				{Name: "keyword", Type: TypeString, Description: "Keyword for pulling in related email"},
				accountArg,
			},
			TTL:       5 * time.Minute,
			Backend:   source.BackendCalendar,
			Operation: "list",
			Compute: func(ctx context.Context, args Args) (any, error) {
				return buildAgenda(ctx, env, args)
			},
		},
		{
			Name:        "list_upcoming_events",
			Description: "List upcoming calendar events.",
			Schema:      Schema{accountArg, maxArg},
			TTL:         5 * time.Minute,
			Backend:     source.BackendCalendar,
			Operation:   "list",
			Compute: func(ctx context.Context, args Args) (any, error) {
				return listEvents(ctx, env, args)
			},
		},
	}

	if !env.ReadOnly {
		builtins = append(builtins, &Tool{
			Name:        "create_event",
			Description: "Create a calendar event with optional attendees and reminders.",
			Schema: Schema{
				{Name: "summary", Type: TypeString, Required: true, Description: "Event title"},
				{Name: "start", Type: TypeTime, Required: true, Description: "Start time (RFC 3339)"},
				{Name: "end", Type: TypeTime, Required: true, Description: "End time (RFC 3339)"},
				{Name: "description", Type: TypeString, Description: "Event body"},
				{Name: "attendees", Type: TypeStringList, Description: "Attendee email addresses"},
				{Name: "reminderMinutes", Type: TypeIntList, Description: "Popup reminders, minutes before start"},
				accountArg,
			},
			Write:     true,
			Backend:   source.BackendCalendar,
			Operation: "create",
			Compute: func(ctx context.Context, args Args) (any, error) {
				return createEvent(ctx, env, args)
			},
		})
	}

	for _, t := range builtins {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func listEmail(ctx context.Context, env Env, args Args, query string) (any, error) {
	src, err := env.Sources.Email(ctx, stringArg(args, "account"))
	if err != nil {
		return nil, err
	}
	records, err := src.List(ctx, source.Filter{
		Query:      query,
		MaxResults: intArg(args, "max"),
	})
	if err != nil {
		return nil, err
	}
	summaries := make([]EmailSummary, 0, len(records))
	for _, record := range records {
		meta := analyze.ExtractMetadata(record)
		summaries = append(summaries, EmailSummary{
			ID:      record.RecordID,
			From:    meta.Sender,
			Subject: meta.Subject,
			Date:    meta.Date,
			Snippet: record.Snippet,
		})
	}
	return summaries, nil
}

func getEmail(ctx context.Context, env Env, args Args) (source.RawRecord, error) {
	src, err := env.Sources.Email(ctx, stringArg(args, "account"))
	if err != nil {
		return source.RawRecord{}, err
	}
	return src.Get(ctx, stringArg(args, "id"))
}

func listEvents(ctx context.Context, env Env, args Args) (any, error) {
	src, err := env.Sources.Calendar(ctx, stringArg(args, "account"))
	if err != nil {
		return nil, err
	}
	records, err := src.List(ctx, source.Filter{MaxResults: intArg(args, "max")})
	if err != nil {
		return nil, err
	}
	summaries := make([]EventSummary, 0, len(records))
	for _, record := range records {
		payload, err := source.DecodeEventPayload(record)
		if err != nil {
			continue
		}
		summaries = append(summaries, EventSummary{
			ID:          record.RecordID,
			Summary:     payload.Summary,
			Description: payload.Description,
			Location:    payload.Location,
			Start:       payload.Start,
			End:         payload.End,
			Attendees:   payload.Attendees,
		})
	}
	return summaries, nil
}

func buildAgenda(ctx context.Context, env Env, args Args) (any, error) {
	account := stringArg(args, "account")
	timeMin := timeArg(args, "timeMin")
	timeMax := timeArg(args, "timeMax")
	if !timeMax.After(timeMin) {
		return nil, fmt.Errorf("%w: timeMax must be after timeMin", ErrInvalidArguments)
	}

	cal, err := env.Sources.Calendar(ctx, account)
	if err != nil {
		return nil, err
	}
	events, err := cal.List(ctx, source.Filter{TimeMin: timeMin, TimeMax: timeMax})
	if err != nil {
		return nil, err
	}

	var emails []source.RawRecord
	if keyword := stringArg(args, "keyword"); keyword != "" {
		mail, err := env.Sources.Email(ctx, account)
		if err != nil {
			return nil, err
		}
		emails, err = mail.List(ctx, source.Filter{
			Query:   keyword,
			TimeMin: timeMin,
			TimeMax: timeMax,
		})
		if err != nil {
			return nil, err
		}
	}

	return analyze.BuildAgenda(timeMin, timeMax, events, emails), nil
}

func createEvent(ctx context.Context, env Env, args Args) (any, error) {
	start := timeArg(args, "start")
	end := timeArg(args, "end")
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidArguments)
	}

	src, err := env.Sources.Calendar(ctx, stringArg(args, "account"))
	if err != nil {
		return nil, err
	}
	id, err := src.Create(ctx, source.EventInput{
		Summary:         stringArg(args, "summary"),
		Description:     stringArg(args, "description"),
		Start:           start,
		End:             end,
		Attendees:       stringListArg(args, "attendees"),
		ReminderMinutes: intListArg(args, "reminderMinutes"),
	})
	if err != nil {
		return nil, err
	}
	return CreatedEvent{ID: id}, nil
}
