package analyze

import "time"

// SentimentLabel is the discrete classification of a polarity score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Metadata is the structured header information extracted from an email
// record. Missing headers yield empty fields, never an error.
type Metadata struct {
	Sender     string    `json:"sender,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Recipients []string  `json:"recipients,omitempty"`
	Date       time.Time `json:"date,omitzero"`
	Body       string    `json:"body,omitempty"`
}

// Sentiment is the polarity classification of a record's text.
type Sentiment struct {
	// Polarity is in [-1, 1]; negative values lean negative.
	Polarity float64 `json:"polarity"`

	Label SentimentLabel `json:"label"`
}

// Task is an action item extracted from a record.
type Task struct {
	Description string `json:"description"`

	// DueHint is the due-by phrase found in the text, if any.
	DueHint string `json:"dueHint,omitempty"`

	// Confidence is the extraction score in [0, 1] that cleared the
	// configured threshold.
	Confidence float64 `json:"confidence"`

	SourceRecordID string `json:"sourceRecordId"`
}

// AgendaItem is one entry in a synthesized agenda, possibly merged from
// several duplicate calendar events.
type AgendaItem struct {
	Time        time.Time `json:"time"`
	End         time.Time `json:"end,omitzero"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`

	// RelatedRecordIDs lists every record that contributed to this
	// item: the merged events plus any related email.
	RelatedRecordIDs []string `json:"relatedRecordIds"`
}
