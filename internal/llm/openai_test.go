package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err, "api key is required")

	c, err := NewClient(Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, defaultModel, c.model)
}

func TestReasonFinalAnswer(t *testing.T) {
	var captured struct {
		auth string
		body map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "You have two meetings today."}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	decision, err := c.Reason(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a productivity assistant."},
			{Role: RoleUser, Content: "What's on today?"},
		},
		Tools: []ToolDefinition{{
			Name:        "list_upcoming_events",
			Description: "List upcoming calendar events.",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)

	assert.False(t, decision.WantsTools())
	assert.Equal(t, "You have two meetings today.", decision.Answer)
	assert.Equal(t, "Bearer key", captured.auth)
	assert.NotEmpty(t, captured.body["model"])
	require.Len(t, captured.body["tools"], 1)
	require.Len(t, captured.body["messages"], 2)
}

func TestReasonToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{
						{
							"id":   "call_1",
							"type": "function",
							"function": map[string]any{
								"name":      "search_email_by_keyword",
								"arguments": `{"keyword":"urgent","max":5}`,
							},
						},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	decision, err := c.Reason(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "anything urgent?"}},
	})
	require.NoError(t, err)

	require.True(t, decision.WantsTools())
	require.Len(t, decision.ToolCalls, 1)
	call := decision.ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "search_email_by_keyword", call.Name)
	assert.Equal(t, "urgent", call.Arguments["keyword"])
	assert.Equal(t, float64(5), call.Arguments["max"])
}

func TestReasonHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Reason(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestReasonEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Reason(context.Background(), Request{})
	assert.Error(t, err)
}
