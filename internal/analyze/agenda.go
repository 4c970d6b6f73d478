package analyze

import (
	"sort"
	"time"

	"github.com/mwain/inboxpilot/internal/source"
)

// BuildAgenda synthesizes an ordered agenda from calendar records within
// the window, attaching related email records by subject overlap.
// Duplicate events — overlapping time windows with matching descriptions
// — are merged into a single item referencing all contributing records.
// Malformed records are skipped, not fatal.
func BuildAgenda(timeMin, timeMax time.Time, events, emails []source.RawRecord) []AgendaItem {
	var items []AgendaItem

	for _, record := range events {
		if record.Kind != source.KindEvent {
			continue
		}
		payload, err := source.DecodeEventPayload(record)
		if err != nil {
			continue
		}
		if !timeMin.IsZero() && payload.Start.Before(timeMin) {
			continue
		}
		if !timeMax.IsZero() && payload.Start.After(timeMax) {
			continue
		}

		item := AgendaItem{
			Time:             payload.Start,
			End:              payload.End,
			Description:      payload.Summary,
			Location:         payload.Location,
			RelatedRecordIDs: []string{record.RecordID},
		}

		if idx := findDuplicate(items, item); idx >= 0 {
			items[idx] = merge(items[idx], item)
		} else {
			items = append(items, item)
		}
	}

	attachRelatedEmails(items, emails)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time.Before(items[j].Time)
	})
	return items
}

// findDuplicate returns the index of an existing item that the candidate
// duplicates: overlapping time window and overlapping description.
func findDuplicate(items []AgendaItem, candidate AgendaItem) int {
	for i, existing := range items {
		if !windowsOverlap(existing, candidate) {
			continue
		}
		if descriptionsOverlap(existing.Description, candidate.Description) {
			return i
		}
	}
	return -1
}

func windowsOverlap(a, b AgendaItem) bool {
	aEnd := a.End
	if aEnd.IsZero() {
		aEnd = a.Time
	}
	bEnd := b.End
	if bEnd.IsZero() {
		bEnd = b.Time
	}
	return !a.Time.After(bEnd) && !b.Time.After(aEnd)
}

// descriptionsOverlap compares token sets; more than half the smaller
// set shared counts as the same event.
func descriptionsOverlap(a, b string) bool {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	smaller := ta
	if len(tb) < len(ta) {
		smaller = tb
	}
	shared := 0
	for token := range ta {
		if tb[token] {
			shared++
		}
	}
	return shared*2 > len(smaller)
}

func merge(a, b AgendaItem) AgendaItem {
	if b.Time.Before(a.Time) {
		a.Time = b.Time
	}
	if b.End.After(a.End) {
		a.End = b.End
	}
	if len(b.Description) > len(a.Description) {
		a.Description = b.Description
	}
	if a.Location == "" {
		a.Location = b.Location
	}
	a.RelatedRecordIDs = append(a.RelatedRecordIDs, b.RelatedRecordIDs...)
	return a
}

// attachRelatedEmails links email records to agenda items whose
// description shares a meaningful token with the email subject.
func attachRelatedEmails(items []AgendaItem, emails []source.RawRecord) {
	for _, email := range emails {
		if email.Kind != source.KindEmail {
			continue
		}
		subject := tokenSet(ExtractMetadata(email).Subject)
		if len(subject) == 0 {
			continue
		}
		for i := range items {
			for token := range tokenSet(items[i].Description) {
				if subject[token] {
					items[i].RelatedRecordIDs = append(items[i].RelatedRecordIDs, email.RecordID)
					break
				}
			}
		}
	}
}

// tokenSet returns the distinctive lowercase tokens of a phrase. Short
// tokens and common filler words carry no signal and are dropped.
var fillerWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"meeting": true, "call": true, "sync": true, "weekly": true,
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range tokenize(text) {
		if len(token) < 3 || fillerWords[token] {
			continue
		}
		set[token] = true
	}
	return set
}
