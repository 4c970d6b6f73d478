package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTasksFindsActionWithDue(t *testing.T) {
	record := emailRecord("r42",
		"Subject: Budget review\r\n\r\n"+
			"Please review the budget spreadsheet by Friday. The numbers look fine otherwise.")

	tasks := ExtractTasks(record, DefaultConfig())

	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0].Description, "review the budget")
	assert.NotEmpty(t, tasks[0].DueHint)
	assert.Equal(t, "r42", tasks[0].SourceRecordID)
	assert.GreaterOrEqual(t, tasks[0].Confidence, DefaultTaskThreshold)
}

func TestExtractTasksNoImperativeLanguage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "descriptive text",
			payload: "Subject: FYI\r\n\r\nThe weather was lovely during the offsite.",
		},
		{
			name:    "empty body",
			payload: "Subject: hi\r\n\r\n",
		},
		{
			name:    "single word",
			payload: "Subject: ping\r\n\r\nok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := ExtractTasks(emailRecord("r1", tt.payload), DefaultConfig())
			assert.Empty(t, tasks)
		})
	}
}

func TestExtractTasksSuppressesWeakSignals(t *testing.T) {
	// An imperative verb with no due signal scores 0.3+0.3 at most with
	// an obligation phrase; below threshold it stays suppressed at a
	// raised threshold.
	record := emailRecord("r1", "Subject: idea\r\n\r\nCheck the dashboard sometime.")

	tasks := ExtractTasks(record, Config{TaskThreshold: 0.5, NeutralBand: DefaultNeutralBand})
	assert.Empty(t, tasks, "imperative without due signal should stay below 0.5")

	lenient := ExtractTasks(record, Config{TaskThreshold: 0.2, NeutralBand: DefaultNeutralBand})
	assert.Len(t, lenient, 1, "lowering the threshold surfaces the weak task")
}

func TestExtractTasksMultipleSentences(t *testing.T) {
	record := emailRecord("r7",
		"Subject: Action items\r\n\r\n"+
			"Send the signed contract by EOD. Submit your expense report before Friday. See you soon.")

	tasks := ExtractTasks(record, DefaultConfig())

	require.Len(t, tasks, 2)
	assert.Contains(t, tasks[0].Description, "Send the signed contract")
	assert.Contains(t, tasks[1].Description, "Submit your expense report")
}

func TestScoreTaskSentenceCap(t *testing.T) {
	confidence, _ := scoreTaskSentence("Please submit the report by Friday, it is urgent and due today")
	assert.LessOrEqual(t, confidence, 1.0)
}
