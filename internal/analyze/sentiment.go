package analyze

import (
	"strings"
	"unicode"

	"github.com/mwain/inboxpilot/internal/source"
)

// Small polarity lexicon tuned for workplace email. Scores are summed
// per token match and normalized by the number of matches, keeping the
// result in [-1, 1] regardless of message length.
var sentimentLexicon = map[string]float64{
	// positive
	"thanks": 0.6, "thank": 0.6, "great": 0.8, "excellent": 1.0,
	"good": 0.5, "awesome": 0.9, "appreciate": 0.7, "appreciated": 0.7,
	"congratulations": 1.0, "congrats": 0.9, "happy": 0.7, "glad": 0.6,
	"perfect": 0.9, "love": 0.8, "wonderful": 0.9, "success": 0.7,
	"successful": 0.7, "resolved": 0.5, "approved": 0.6, "welcome": 0.4,
	"pleased": 0.6, "excited": 0.7, "nice": 0.5, "well": 0.3,

	// negative
	"urgent": -0.5, "problem": -0.6, "issue": -0.4, "broken": -0.8,
	"fail": -0.8, "failed": -0.8, "failure": -0.8, "error": -0.5,
	"unfortunately": -0.6, "sorry": -0.4, "delay": -0.5, "delayed": -0.5,
	"missed": -0.6, "wrong": -0.6, "bad": -0.6, "critical": -0.6,
	"complaint": -0.8, "disappointed": -0.9, "disappointing": -0.9,
	"unacceptable": -1.0, "angry": -0.9, "frustrated": -0.8,
	"overdue": -0.7, "escalate": -0.6, "blocker": -0.7, "outage": -0.8,

	// negations flip nothing on their own but dampen the score
	"not": -0.1, "no": -0.1, "never": -0.2,
}

// AnalyzeSentiment scores the combined subject and body text of a
// record. The analyzer is deterministic: the same record always yields
// the same polarity and label.
func AnalyzeSentiment(record source.RawRecord, cfg Config) Sentiment {
	cfg = cfg.withDefaults()

	meta := ExtractMetadata(record)
	text := meta.Subject + " " + meta.Body
	if record.Kind != source.KindEmail {
		text = record.Payload
	}

	return scoreSentiment(text, cfg.NeutralBand)
}

func scoreSentiment(text string, neutralBand float64) Sentiment {
	var sum float64
	var matches int

	for _, token := range tokenize(text) {
		if score, ok := sentimentLexicon[token]; ok {
			sum += score
			matches++
		}
	}

	var polarity float64
	if matches > 0 {
		polarity = sum / float64(matches)
	}
	if polarity > 1 {
		polarity = 1
	} else if polarity < -1 {
		polarity = -1
	}

	label := SentimentNeutral
	switch {
	case polarity > neutralBand:
		label = SentimentPositive
	case polarity < -neutralBand:
		label = SentimentNegative
	}

	return Sentiment{Polarity: polarity, Label: label}
}

// tokenize lowercases and splits on anything that is not a letter.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
