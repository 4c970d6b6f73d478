package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwain/inboxpilot/internal/agent"
	"github.com/mwain/inboxpilot/internal/llm"
)

func newChatCmd() *cobra.Command {
	var (
		model     string
		maxRounds int
		showTrace bool
	)

	cmd := &cobra.Command{
		Use:   "chat [utterance]",
		Short: "Ask the assistant a one-shot question",
		Long: `Run a single reasoning episode: the assistant decides which email and
calendar tools to call, dispatches them, and prints its final answer.

The OpenAI-compatible endpoint is configured via INBOXPILOT_LLM_API_KEY
(or OPENAI_API_KEY), INBOXPILOT_LLM_BASE_URL and INBOXPILOT_LLM_MODEL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if model != "" {
				settings.LLMModel = model
			}
			if maxRounds > 0 {
				settings.MaxRounds = maxRounds
			}

			ctx := cmd.Context()
			rt, err := newRuntime(ctx, settings)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			reasoner, err := llm.NewClient(llm.Config{
				APIKey:  settings.LLMAPIKey,
				BaseURL: settings.LLMBaseURL,
				Model:   settings.LLMModel,
			})
			if err != nil {
				return err
			}

			assistant := agent.New(reasoner, rt.dispatcher, rt.registry,
				agent.WithMaxRounds(settings.MaxRounds),
				agent.WithLogger(rt.logger),
				agent.WithEpisodeObserver(rt.provider.Metrics()),
			)

			utterance := strings.Join(args, " ")
			outcome, err := assistant.RunEpisode(ctx, utterance, nil)
			if err != nil {
				return fmt.Errorf("episode failed: %w", err)
			}

			fmt.Println(outcome.Answer)

			if showTrace {
				trace, err := json.MarshalIndent(outcome.Trace, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to render trace: %w", err)
				}
				fmt.Fprintln(os.Stderr, string(trace))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Override the configured model")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Override the tool-call round budget")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print the episode trace to stderr")

	return cmd
}
