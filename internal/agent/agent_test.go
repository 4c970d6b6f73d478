package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwain/inboxpilot/internal/auth"
	"github.com/mwain/inboxpilot/internal/cache"
	"github.com/mwain/inboxpilot/internal/llm"
	"github.com/mwain/inboxpilot/internal/source"
	"github.com/mwain/inboxpilot/internal/tools"
)

// scriptedReasoner replays a fixed sequence of decisions, repeating
// the last one once the script runs out.
type scriptedReasoner struct {
	decisions []llm.Decision
	requests  []llm.Request
}

func (s *scriptedReasoner) Reason(ctx context.Context, req llm.Request) (llm.Decision, error) {
	s.requests = append(s.requests, req)
	idx := len(s.requests) - 1
	if idx >= len(s.decisions) {
		idx = len(s.decisions) - 1
	}
	return s.decisions[idx], nil
}

func toolCall(id, name string, args map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

func newTestAgent(t *testing.T, reasoner llm.Reasoner, reg *tools.Registry, opts ...Option) *Agent {
	t.Helper()
	d := tools.NewDispatcher(reg, cache.New(),
		tools.WithRetryInterval(time.Millisecond),
		tools.WithMaxAttempts(1))
	return New(reasoner, d, reg, opts...)
}

func decodeObservation(t *testing.T, msg llm.Message) map[string]any {
	t.Helper()
	require.Equal(t, llm.RoleTool, msg.Role)
	var obs map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Content), &obs))
	return obs
}

func TestRunEpisodeDirectAnswer(t *testing.T) {
	reasoner := &scriptedReasoner{decisions: []llm.Decision{{Answer: "Nothing urgent today."}}}
	a := newTestAgent(t, reasoner, tools.NewRegistry())

	outcome, err := a.RunEpisode(context.Background(), "anything urgent?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Nothing urgent today.", outcome.Answer)
	assert.Equal(t, StateResponding, outcome.Trace.State)
	assert.Zero(t, outcome.Trace.Rounds)
	assert.Empty(t, outcome.Trace.Invocations)

	require.Len(t, outcome.Messages, 3)
	assert.Equal(t, llm.RoleSystem, outcome.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, outcome.Messages[1].Role)
	assert.Equal(t, llm.RoleAssistant, outcome.Messages[2].Role)
}

func TestRunEpisodeToolRoundTrip(t *testing.T) {
	reg := tools.NewRegistry()
	var calls atomic.Int32
	require.NoError(t, reg.Register(&tools.Tool{
		Name:        "lookup",
		Description: "Look something up.",
		Schema:      tools.Schema{{Name: "keyword", Type: tools.TypeString, Required: true}},
		TTL:         time.Minute,
		Compute: func(ctx context.Context, args tools.Args) (any, error) {
			calls.Add(1)
			return "found it", nil
		},
	}))

	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "lookup", map[string]any{"keyword": "urgent"})}},
		{Answer: "Found one urgent mail."},
	}}
	a := newTestAgent(t, reasoner, reg)

	outcome, err := a.RunEpisode(context.Background(), "anything urgent?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Found one urgent mail.", outcome.Answer)
	assert.Equal(t, 1, outcome.Trace.Rounds)
	assert.Equal(t, int32(1), calls.Load())

	require.Len(t, outcome.Trace.Invocations, 1)
	inv := outcome.Trace.Invocations[0]
	assert.Equal(t, "lookup", inv.Tool)
	assert.Equal(t, 1, inv.Round)
	assert.NotEmpty(t, inv.Fingerprint)
	assert.Empty(t, inv.Error)

	// The second reasoning step saw the assistant's tool request and
	// the observation.
	require.Len(t, reasoner.requests, 2)
	second := reasoner.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	require.Len(t, second[2].ToolCalls, 1)

	obs := decodeObservation(t, second[3])
	assert.Equal(t, "c1", second[3].ToolCallID)
	assert.Equal(t, "found it", obs["result"])

	// The registry's tools were advertised to the reasoner.
	require.Len(t, reasoner.requests[0].Tools, 1)
	assert.Equal(t, "lookup", reasoner.requests[0].Tools[0].Name)
}

func TestRunEpisodeMaxIterations(t *testing.T) {
	reg := tools.NewRegistry()
	var calls atomic.Int32
	require.NoError(t, reg.Register(&tools.Tool{
		Name:  "ping",
		Write: true, // uncached so every round reaches the compute
		Compute: func(ctx context.Context, args tools.Args) (any, error) {
			calls.Add(1)
			return "pong", nil
		},
	}))

	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{toolCall("c", "ping", nil)}},
	}}
	a := newTestAgent(t, reasoner, reg, WithMaxRounds(3))

	outcome, err := a.RunEpisode(context.Background(), "loop forever", nil)
	require.ErrorIs(t, err, ErrMaxIterationsExceeded)

	assert.Equal(t, StateFailed, outcome.Trace.State)
	assert.Equal(t, 3, outcome.Trace.Rounds, "exactly the configured round limit")
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, outcome.Trace.Invocations, 3, "partial trace survives the failure")
}

func TestRunEpisodeMultiToolRequestOrder(t *testing.T) {
	reg := tools.NewRegistry()
	for _, name := range []string{"alpha", "beta"} {
		require.NoError(t, reg.Register(&tools.Tool{
			Name: name,
			TTL:  time.Minute,
			Compute: func(ctx context.Context, args tools.Args) (any, error) {
				return name + " result", nil
			},
		}))
	}

	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{
			toolCall("c1", "beta", nil),
			toolCall("c2", "alpha", nil),
		}},
		{Answer: "done"},
	}}
	a := newTestAgent(t, reasoner, reg)

	outcome, err := a.RunEpisode(context.Background(), "both please", nil)
	require.NoError(t, err)

	// Observations fold back in request order, not completion order.
	second := reasoner.requests[1].Messages
	require.Len(t, second, 5)
	assert.Equal(t, "c1", second[3].ToolCallID)
	assert.Equal(t, "c2", second[4].ToolCallID)
	assert.Equal(t, "beta result", decodeObservation(t, second[3])["result"])
	assert.Equal(t, "alpha result", decodeObservation(t, second[4])["result"])

	require.Len(t, outcome.Trace.Invocations, 2)
	assert.Equal(t, "beta", outcome.Trace.Invocations[0].Tool)
	assert.Equal(t, "alpha", outcome.Trace.Invocations[1].Tool)
}

func TestRunEpisodeToolFailureBecomesObservation(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&tools.Tool{
		Name: "down",
		TTL:  time.Minute,
		Compute: func(ctx context.Context, args tools.Args) (any, error) {
			return nil, fmt.Errorf("backend: %w", source.ErrTransient)
		},
	}))

	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "down", nil)}},
		{Answer: "The mail service is unavailable right now."},
	}}
	a := newTestAgent(t, reasoner, reg)

	outcome, err := a.RunEpisode(context.Background(), "check mail", nil)
	require.NoError(t, err, "a failed tool does not fail the episode")

	obs := decodeObservation(t, reasoner.requests[1].Messages[3])
	assert.Equal(t, "tool_failed", obs["error"])
	assert.Equal(t, "tool_failed", outcome.Trace.Invocations[0].Error)
	assert.Equal(t, StateResponding, outcome.Trace.State)
}

func TestRunEpisodeUnknownToolObservation(t *testing.T) {
	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "no_such_tool", nil)}},
		{Answer: "I cannot do that."},
	}}
	a := newTestAgent(t, reasoner, tools.NewRegistry())

	outcome, err := a.RunEpisode(context.Background(), "do magic", nil)
	require.NoError(t, err)

	obs := decodeObservation(t, reasoner.requests[1].Messages[3])
	assert.Equal(t, "invalid_arguments", obs["error"])
	assert.Equal(t, "I cannot do that.", outcome.Answer)
}

func TestRunEpisodeMissingRecordObservation(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&tools.Tool{
		Name:   "fetch",
		Schema: tools.Schema{{Name: "id", Type: tools.TypeString, Required: true}},
		TTL:    time.Minute,
		Compute: func(ctx context.Context, args tools.Args) (any, error) {
			return nil, source.ErrNotFound
		},
	}))

	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "fetch", map[string]any{"id": "ghost"})}},
		{Answer: "No such message exists."},
	}}
	a := newTestAgent(t, reasoner, reg)

	outcome, err := a.RunEpisode(context.Background(), "open message ghost", nil)
	require.NoError(t, err)

	obs := decodeObservation(t, reasoner.requests[1].Messages[3])
	assert.Equal(t, true, obs["missing"])
	_, hasError := obs["error"]
	assert.False(t, hasError, "absence is not an error")
	assert.True(t, outcome.Trace.Invocations[0].Missing)
}

func TestRunEpisodeAuthExpiredIsFatal(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&tools.Tool{
		Name: "inbox",
		TTL:  time.Minute,
		Compute: func(ctx context.Context, args tools.Args) (any, error) {
			return nil, fmt.Errorf("acquire: %w", auth.ErrExpired)
		},
	}))

	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "inbox", nil)}},
	}}
	a := newTestAgent(t, reasoner, reg)

	outcome, err := a.RunEpisode(context.Background(), "check mail", nil)
	require.ErrorIs(t, err, auth.ErrExpired)
	assert.Equal(t, StateFailed, outcome.Trace.State)
	require.Len(t, outcome.Trace.Invocations, 1)
	assert.Equal(t, "auth_expired", outcome.Trace.Invocations[0].Error)
}

type fakeEpisodeObserver struct {
	episodes   []string
	increments int
	decrements int
}

func (o *fakeEpisodeObserver) RecordEpisode(_ context.Context, status string, rounds int, _ time.Duration) {
	o.episodes = append(o.episodes, fmt.Sprintf("%s/%d", status, rounds))
}

func (o *fakeEpisodeObserver) IncrementActiveEpisodes(context.Context) { o.increments++ }
func (o *fakeEpisodeObserver) DecrementActiveEpisodes(context.Context) { o.decrements++ }

func TestRunEpisodeObserverBracketsEpisode(t *testing.T) {
	obs := &fakeEpisodeObserver{}
	reasoner := &scriptedReasoner{decisions: []llm.Decision{{Answer: "done"}}}
	a := newTestAgent(t, reasoner, tools.NewRegistry(), WithEpisodeObserver(obs))

	_, err := a.RunEpisode(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.increments)
	assert.Equal(t, 1, obs.decrements, "the active gauge must return to zero after the episode")
	assert.Equal(t, []string{"success/0"}, obs.episodes)
}

func TestRunEpisodeObserverSeesFailure(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&tools.Tool{
		Name:  "ping",
		Write: true,
		Compute: func(ctx context.Context, args tools.Args) (any, error) {
			return "pong", nil
		},
	}))
	reasoner := &scriptedReasoner{decisions: []llm.Decision{
		{ToolCalls: []llm.ToolCall{toolCall("c", "ping", nil)}},
	}}
	obs := &fakeEpisodeObserver{}
	a := newTestAgent(t, reasoner, reg, WithMaxRounds(2), WithEpisodeObserver(obs))

	_, err := a.RunEpisode(context.Background(), "loop", nil)
	require.ErrorIs(t, err, ErrMaxIterationsExceeded)

	assert.Equal(t, 1, obs.increments)
	assert.Equal(t, 1, obs.decrements)
	assert.Equal(t, []string{"error/2"}, obs.episodes)
}

func TestRunEpisodeContinuesPriorConversation(t *testing.T) {
	prior := []llm.Message{
		{Role: llm.RoleSystem, Content: "custom prompt"},
		{Role: llm.RoleUser, Content: "first question"},
		{Role: llm.RoleAssistant, Content: "first answer"},
	}
	reasoner := &scriptedReasoner{decisions: []llm.Decision{{Answer: "second answer"}}}
	a := newTestAgent(t, reasoner, tools.NewRegistry())

	outcome, err := a.RunEpisode(context.Background(), "follow-up", prior)
	require.NoError(t, err)

	require.Len(t, outcome.Messages, 5)
	assert.Equal(t, "custom prompt", outcome.Messages[0].Content, "no second system prompt is injected")
	assert.Equal(t, "follow-up", outcome.Messages[3].Content)
	assert.Equal(t, "second answer", outcome.Messages[4].Content)
}
