// Package agent implements the reasoning episode state machine: given
// a user utterance it alternates between the reasoning collaborator
// and the tool dispatcher until the reasoner produces a final answer,
// the round budget runs out, or a fatal error ends the episode.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mwain/inboxpilot/internal/auth"
	"github.com/mwain/inboxpilot/internal/llm"
	"github.com/mwain/inboxpilot/internal/logging"
	"github.com/mwain/inboxpilot/internal/source"
	"github.com/mwain/inboxpilot/internal/tools"
)

// State is the episode's position in its lifecycle.
type State string

const (
	StateDeciding           State = "deciding"
	StateAwaitingToolResult State = "awaiting_tool_result"
	StateResponding         State = "responding"
	StateFailed             State = "failed"
)

// ErrMaxIterationsExceeded ends an episode whose reasoner kept
// requesting tools past the round budget.
var ErrMaxIterationsExceeded = errors.New("max reasoning rounds exceeded")

// DefaultMaxRounds bounds tool-call rounds per episode.
const DefaultMaxRounds = 6

const defaultSystemPrompt = "You are a personal productivity assistant with access to the " +
	"user's email and calendar through tools. Use tools to ground every factual claim; " +
	"answer directly when no tool is needed."

// Invocation is one dispatched tool call in the episode trace.
type Invocation struct {
	Round       int            `json:"round"`
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	CacheHit    bool           `json:"cacheHit,omitempty"`
	Missing     bool           `json:"missing,omitempty"`
	Error       string         `json:"error,omitempty"`
	Elapsed     time.Duration  `json:"elapsed"`
}

// Trace is the observable record of one episode.
type Trace struct {
	Episode     string       `json:"episode"`
	State       State        `json:"state"`
	Rounds      int          `json:"rounds"`
	Invocations []Invocation `json:"invocations,omitempty"`
}

// Outcome is the result of a completed or failed episode. On failure
// the trace and messages still carry everything that happened, so the
// caller can decide whether to retry the whole episode.
type Outcome struct {
	Answer string
	Trace  Trace

	// Messages is the full conversation including this episode's
	// turns, reusable as prior state for a follow-up utterance.
	Messages []llm.Message
}

// EpisodeObserver receives episode telemetry. The increment/decrement
// pair brackets every episode so the active-episode gauge tracks
// in-flight work.
type EpisodeObserver interface {
	RecordEpisode(ctx context.Context, status string, rounds int, elapsed time.Duration)
	IncrementActiveEpisodes(ctx context.Context)
	DecrementActiveEpisodes(ctx context.Context)
}

// Agent runs reasoning episodes over a fixed tool registry.
type Agent struct {
	reasoner     llm.Reasoner
	dispatcher   *tools.Dispatcher
	registry     *tools.Registry
	maxRounds    int
	systemPrompt string
	logger       *slog.Logger
	observer     EpisodeObserver

	definitions []llm.ToolDefinition
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxRounds sets the tool-call round budget per episode.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEpisodeObserver wires in episode telemetry.
func WithEpisodeObserver(obs EpisodeObserver) Option {
	return func(a *Agent) {
		a.observer = obs
	}
}

// New assembles an agent. The registry's tools are advertised to the
// reasoner on every step.
func New(reasoner llm.Reasoner, dispatcher *tools.Dispatcher, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		reasoner:     reasoner,
		dispatcher:   dispatcher,
		registry:     registry,
		maxRounds:    DefaultMaxRounds,
		systemPrompt: defaultSystemPrompt,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, t := range registry.All() {
		a.definitions = append(a.definitions, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema.JSONSchema(),
		})
	}
	return a
}

// RunEpisode runs one reasoning episode from a user utterance. Prior
// messages continue an existing conversation; nil starts a fresh one.
// On failure the returned outcome still carries the partial trace.
func (a *Agent) RunEpisode(ctx context.Context, utterance string, prior []llm.Message) (*Outcome, error) {
	episodeID := uuid.NewString()
	log := logging.WithEpisode(a.logger, episodeID)
	start := time.Now()
	if a.observer != nil {
		a.observer.IncrementActiveEpisodes(ctx)
	}

	messages := prior
	if len(messages) == 0 {
		messages = []llm.Message{{Role: llm.RoleSystem, Content: a.systemPrompt}}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})

	outcome := &Outcome{
		Trace: Trace{Episode: episodeID, State: StateDeciding},
	}
	fail := func(err error) (*Outcome, error) {
		outcome.Trace.State = StateFailed
		outcome.Messages = messages
		a.observe(ctx, logging.StatusError, outcome.Trace.Rounds, start)
		log.WarnContext(ctx, "episode failed",
			slog.Int("rounds", outcome.Trace.Rounds), logging.Err(err))
		return outcome, err
	}

	for round := 1; ; round++ {
		decision, err := a.reasoner.Reason(ctx, llm.Request{
			Messages: messages,
			Tools:    a.definitions,
		})
		if err != nil {
			return fail(fmt.Errorf("reasoning step: %w", err))
		}

		if !decision.WantsTools() {
			outcome.Answer = decision.Answer
			outcome.Trace.State = StateResponding
			outcome.Messages = append(messages, llm.Message{
				Role: llm.RoleAssistant, Content: decision.Answer,
			})
			a.observe(ctx, logging.StatusSuccess, outcome.Trace.Rounds, start)
			log.InfoContext(ctx, "episode completed",
				slog.Int("rounds", outcome.Trace.Rounds),
				slog.Int("tool_calls", len(outcome.Trace.Invocations)))
			return outcome, nil
		}

		if round > a.maxRounds {
			return fail(fmt.Errorf("%w: %d rounds", ErrMaxIterationsExceeded, a.maxRounds))
		}
		outcome.Trace.Rounds = round
		outcome.Trace.State = StateAwaitingToolResult

		messages = append(messages, llm.Message{
			Role: llm.RoleAssistant, ToolCalls: decision.ToolCalls,
		})

		observations, invocations, err := a.dispatchRound(ctx, round, decision.ToolCalls)
		outcome.Trace.Invocations = append(outcome.Trace.Invocations, invocations...)
		if err != nil {
			return fail(err)
		}

		// Observations fold back in request order so context order is
		// deterministic given identical inputs and cache state.
		messages = append(messages, observations...)
		outcome.Trace.State = StateDeciding
	}
}

// dispatchRound executes one round's tool calls. Calls run
// concurrently, but observations and trace entries keep the request
// order. A fatal error (cancellation, dead refresh token) aborts the
// round; everything else becomes an observation for the reasoner.
func (a *Agent) dispatchRound(ctx context.Context, round int, calls []llm.ToolCall) ([]llm.Message, []Invocation, error) {
	results := make([]*tools.Result, len(calls))
	callErrs := make([]error, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			res, err := a.dispatcher.Invoke(gctx, call.Name, tools.Args(call.Arguments))
			results[i], callErrs[i] = res, err
			if isFatal(err) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, a.traceRound(round, calls, results, callErrs), err
	}

	observations := make([]llm.Message, 0, len(calls))
	for i, call := range calls {
		observations = append(observations, llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Content:    renderObservation(call.Name, results[i], callErrs[i]),
		})
	}
	return observations, a.traceRound(round, calls, results, callErrs), nil
}

func (a *Agent) traceRound(round int, calls []llm.ToolCall, results []*tools.Result, callErrs []error) []Invocation {
	invocations := make([]Invocation, 0, len(calls))
	for i, call := range calls {
		inv := Invocation{
			Round:     round,
			Tool:      call.Name,
			Arguments: call.Arguments,
		}
		if res := results[i]; res != nil {
			inv.Fingerprint = res.Fingerprint
			inv.CacheHit = res.CacheHit
			inv.Missing = res.Missing
		}
		if err := callErrs[i]; err != nil {
			inv.Error = errorKind(err)
		}
		invocations = append(invocations, inv)
	}
	return invocations
}

func (a *Agent) observe(ctx context.Context, status string, rounds int, start time.Time) {
	if a.observer == nil {
		return
	}
	a.observer.DecrementActiveEpisodes(ctx)
	a.observer.RecordEpisode(ctx, status, rounds, time.Since(start))
}

func isFatal(err error) bool {
	return err != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, auth.ErrExpired))
}

// observation is the uniform shape every tool result or classified
// error takes in the reasoner's context, regardless of the backend
// that produced it.
type observation struct {
	Tool    string `json:"tool"`
	Result  any    `json:"result,omitempty"`
	Missing bool   `json:"missing,omitempty"`
	Error   string `json:"error,omitempty"`
}

func renderObservation(tool string, res *tools.Result, err error) string {
	obs := observation{Tool: tool}
	switch {
	case err != nil:
		obs.Error = errorKind(err)
	case res.Missing:
		obs.Missing = true
	default:
		obs.Result = res.Value
	}

	encoded, jsonErr := json.Marshal(obs)
	if jsonErr != nil {
		encoded, _ = json.Marshal(observation{Tool: tool, Error: "unencodable result"})
	}
	return string(encoded)
}

// errorKind reduces a classified error to the stable name the
// reasoner sees.
func errorKind(err error) string {
	switch {
	case errors.Is(err, tools.ErrInvalidArguments):
		return "invalid_arguments"
	case errors.Is(err, auth.ErrExpired):
		return "auth_expired"
	case errors.Is(err, tools.ErrToolFailed):
		return "tool_failed"
	case errors.Is(err, source.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, source.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, source.ErrNotFound):
		return "not_found"
	case errors.Is(err, source.ErrTransient), errors.Is(err, auth.ErrUnavailable):
		return "transient"
	default:
		return "internal"
	}
}
