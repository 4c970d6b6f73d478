package analyze

import (
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/mwain/inboxpilot/internal/source"
)

// ExtractMetadata parses an email record's payload into structured
// metadata. Parsing is tolerant: a payload that is not a well-formed
// message still yields whatever could be recovered, with the remaining
// fields empty.
func ExtractMetadata(record source.RawRecord) Metadata {
	return ParseEmail(record.Payload)
}

// ParseEmail parses a raw RFC 2822 style email into metadata. Missing
// headers become empty fields; an unparseable payload is treated as a
// bare body.
func ParseEmail(raw string) Metadata {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		// No header block at all; keep the text as the body.
		return Metadata{Body: strings.TrimSpace(raw)}
	}

	meta := Metadata{
		Subject: msg.Header.Get("Subject"),
	}

	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		meta.Sender = from.Address
	} else {
		meta.Sender = strings.TrimSpace(msg.Header.Get("From"))
	}

	for _, header := range []string{"To", "Cc"} {
		if addrs, err := msg.Header.AddressList(header); err == nil {
			for _, a := range addrs {
				meta.Recipients = append(meta.Recipients, a.Address)
			}
		} else if v := strings.TrimSpace(msg.Header.Get(header)); v != "" {
			meta.Recipients = append(meta.Recipients, v)
		}
	}

	if date, err := msg.Header.Date(); err == nil {
		meta.Date = date
	} else if v := msg.Header.Get("Date"); v != "" {
		// Some senders use a non-standard date layout
		for _, layout := range []string{time.RFC1123, time.RFC822, "2006-01-02 15:04:05"} {
			if parsed, perr := time.Parse(layout, v); perr == nil {
				meta.Date = parsed
				break
			}
		}
	}

	if body, err := io.ReadAll(msg.Body); err == nil {
		meta.Body = strings.TrimSpace(string(body))
	}

	return meta
}
