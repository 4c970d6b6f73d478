package source

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventPayload is the structured form of a calendar record's payload.
// Calendar adapters serialize it as JSON into RawRecord.Payload; the
// agenda analyzer deserializes it on the other side.
type EventPayload struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// Encode serializes the payload for embedding in a RawRecord.
func (p EventPayload) Encode() string {
	data, _ := json.Marshal(p)
	return string(data)
}

// DecodeEventPayload parses a calendar record's payload.
func DecodeEventPayload(record RawRecord) (EventPayload, error) {
	if record.Kind != KindEvent {
		return EventPayload{}, fmt.Errorf("record %s is not an event", record.RecordID)
	}
	var p EventPayload
	if err := json.Unmarshal([]byte(record.Payload), &p); err != nil {
		return EventPayload{}, fmt.Errorf("malformed event payload in %s: %w", record.RecordID, err)
	}
	return p, nil
}
