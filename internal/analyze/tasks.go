package analyze

import (
	"regexp"
	"strings"

	"github.com/mwain/inboxpilot/internal/source"
)

// Imperative verbs that commonly open an action request in email.
var imperativeVerbs = map[string]bool{
	"review": true, "send": true, "schedule": true, "complete": true,
	"submit": true, "prepare": true, "update": true, "finish": true,
	"confirm": true, "reply": true, "respond": true, "check": true,
	"share": true, "upload": true, "sign": true, "approve": true,
	"book": true, "call": true, "email": true, "finalize": true,
	"fix": true, "draft": true, "attend": true, "follow": true,
}

// Phrases that signal an obligation even without a leading imperative.
var obligationPhrases = []string{
	"please", "need to", "needs to", "have to", "must", "should",
	"don't forget", "do not forget", "make sure", "remember to",
	"action required", "action item",
}

// duePattern matches explicit due-by phrasing. The captured group is
// kept as the task's due hint.
var duePattern = regexp.MustCompile(`(?i)\b(by\s+(?:end\s+of\s+\w+|eod|eow|noon|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday|\d{1,2}(?:[:/.\-]\d{1,2})?(?:[/.\-]\d{2,4})?\s*(?:am|pm)?)|due\s+(?:on\s+|by\s+)?\S+|before\s+(?:the\s+)?(?:meeting|deadline|eod|\w+day)|(?:this|next)\s+(?:week|month|monday|tuesday|wednesday|thursday|friday))\b`)

// deadlineKeywords contribute weight without providing a parseable hint.
var deadlineKeywords = []string{"deadline", "due", "asap", "urgent", "overdue", "today", "tomorrow"}

// ExtractTasks scans a record for action language and returns the tasks
// whose extraction confidence clears the configured threshold. Records
// with no imperative language yield an empty slice, never an error.
func ExtractTasks(record source.RawRecord, cfg Config) []Task {
	cfg = cfg.withDefaults()

	meta := ExtractMetadata(record)
	text := meta.Subject + "\n" + meta.Body
	if record.Kind != source.KindEmail {
		text = record.Payload
	}

	var tasks []Task
	for _, sentence := range splitSentences(text) {
		confidence, dueHint := scoreTaskSentence(sentence)
		if confidence < cfg.TaskThreshold {
			continue
		}
		tasks = append(tasks, Task{
			Description:    strings.TrimSpace(sentence),
			DueHint:        dueHint,
			Confidence:     confidence,
			SourceRecordID: record.RecordID,
		})
	}
	return tasks
}

// scoreTaskSentence weighs the action signals in one sentence:
// a leading imperative verb contributes 0.3, an obligation phrase 0.3,
// an explicit due phrase 0.4 and a bare deadline keyword 0.3. The score
// is capped at 1.
func scoreTaskSentence(sentence string) (confidence float64, dueHint string) {
	trimmed := strings.TrimSpace(strings.ToLower(sentence))
	if trimmed == "" {
		return 0, ""
	}

	words := strings.Fields(trimmed)
	if len(words) < 2 {
		// A task needs at least a verb phrase and an object.
		return 0, ""
	}

	if imperativeVerbs[strings.Trim(words[0], ",.!?:;")] {
		confidence += 0.3
	}
	for _, phrase := range obligationPhrases {
		if strings.Contains(trimmed, phrase) {
			confidence += 0.3
			break
		}
	}

	if m := duePattern.FindString(sentence); m != "" {
		confidence += 0.4
		dueHint = strings.TrimSpace(m)
	} else {
		for _, kw := range deadlineKeywords {
			if containsWord(trimmed, kw) {
				confidence += 0.3
				dueHint = kw
				break
			}
		}
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence, dueHint
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, ",.!?:;") == word {
			return true
		}
	}
	return false
}

// splitSentences breaks text on sentence punctuation and newlines.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
