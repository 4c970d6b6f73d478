// Package gmail implements the email source adapter on top of the Gmail
// API. Records are normalized into the source.RawRecord envelope with an
// RFC 2822 style payload so analyzers can parse them without knowing
// anything about Gmail.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mwain/inboxpilot/internal/auth"
	"github.com/mwain/inboxpilot/internal/google"
	"github.com/mwain/inboxpilot/internal/source"
)

const defaultMaxResults = 15

// Client wraps the Gmail Users service for one account. It is stateless
// apart from the service handle; credentials are borrowed from the auth
// manager per call.
type Client struct {
	svc *gmail.UsersService
	id  string
}

// New creates a Gmail source adapter for the given account. Tokens are
// acquired through the auth manager on every request.
func New(ctx context.Context, mgr *auth.Manager, account string) (*Client, error) {
	id := source.MakeID(source.BackendGmail, account)
	httpClient := google.NewHTTPClient(auth.TokenSource(ctx, mgr, id))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{svc: svc.Users, id: id}, nil
}

// ID returns the source identifier, e.g. "gmail:default".
func (c *Client) ID() string {
	return c.id
}

// Kind returns source.KindEmail.
func (c *Client) Kind() source.Kind {
	return source.KindEmail
}

// List returns messages matching the filter, newest first. The filter's
// Query uses Gmail search syntax; time bounds are translated into
// after:/before: operators.
func (c *Client) List(ctx context.Context, f source.Filter) ([]source.RawRecord, error) {
	maxResults := f.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	call := c.svc.Messages.List("me").
		Q(buildQuery(f)).
		MaxResults(int64(maxResults)).
		Context(ctx)

	res, err := call.Do()
	if err != nil {
		return nil, source.ClassifyError(err)
	}

	records := make([]source.RawRecord, 0, len(res.Messages))
	for _, m := range res.Messages {
		record, err := c.Get(ctx, m.Id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Get fetches a single message and wraps it in a RawRecord.
func (c *Client) Get(ctx context.Context, recordID string) (source.RawRecord, error) {
	msg, err := c.svc.Messages.Get("me", recordID).Format("full").Context(ctx).Do()
	if err != nil {
		return source.RawRecord{}, source.ClassifyError(err)
	}
	return c.toRecord(msg), nil
}

// Create is not supported for email sources.
func (c *Client) Create(ctx context.Context, input source.EventInput) (string, error) {
	return "", source.ErrUnsupported
}

func buildQuery(f source.Filter) string {
	parts := []string{}
	if f.Query != "" {
		parts = append(parts, f.Query)
	}
	if !f.TimeMin.IsZero() {
		parts = append(parts, fmt.Sprintf("after:%d", f.TimeMin.Unix()))
	}
	if !f.TimeMax.IsZero() {
		parts = append(parts, fmt.Sprintf("before:%d", f.TimeMax.Unix()))
	}
	return strings.Join(parts, " ")
}

// toRecord normalizes a Gmail message into the source envelope. The
// payload is a header block followed by a blank line and the plain-text
// body, mirroring the wire format of the original message.
func (c *Client) toRecord(msg *gmail.Message) source.RawRecord {
	var sb strings.Builder
	for _, name := range []string{"From", "To", "Cc", "Subject", "Date"} {
		if v := headerValue(msg, name); v != "" {
			fmt.Fprintf(&sb, "%s: %s\r\n", name, v)
		}
	}
	sb.WriteString("\r\n")
	sb.WriteString(bodyText(msg.Payload))

	return source.RawRecord{
		SourceID:  c.id,
		RecordID:  msg.Id,
		Timestamp: time.UnixMilli(msg.InternalDate),
		Kind:      source.KindEmail,
		Payload:   sb.String(),
		Snippet:   msg.Snippet,
	}
}

// headerValue extracts a header value from a Gmail message.
func headerValue(m *gmail.Message, header string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// bodyText walks the MIME tree and returns the first text/plain part,
// falling back to text/html and finally to the top-level body.
func bodyText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}

	if text := findPart(part, "text/plain"); text != "" {
		return text
	}
	if html := findPart(part, "text/html"); html != "" {
		return html
	}
	return decodeBody(part)
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType {
		return decodeBody(part)
	}
	for _, p := range part.Parts {
		if text := findPart(p, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func decodeBody(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		// Some messages use raw (unpadded) encoding
		data, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
	}
	return string(data)
}
