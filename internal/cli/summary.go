package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"repair-dashboard/internal/assistant"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var (
		data   datasetFlags
		tokens bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the statistics summary the assistant is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := data.params()
			if err != nil {
				return err
			}
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := data.load(cmd.Context(), app); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := app.Analytics.Summary(params)
			fmt.Fprintln(out, summary)
			if tokens {
				est := assistant.EstimateTokens(summary, len(app.Analytics.Records()))
				fmt.Fprintf(out, "\n%s ~%d tokens (raw records ~%d, %.1f%% saved)\n",
					labelStyle.Render("Prompt size:"), est.SummaryTokens, est.RawTokens, est.SavingsPercent)
			}
			return nil
		},
	}
	data.register(cmd)
	cmd.Flags().BoolVarP(&tokens, "tokens", "t", false, "Also estimate the prompt size")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var data datasetFlags
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a question about the repair data",
		Long: `Ask the assistant a single question. Only the aggregated summary of the
dataset is sent to the completion API, never the raw records.

Examples:
  repairctl ask "Which workshop costs the most?"
  repairctl ask --import <id> "How did costs change by quarter?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("question must not be empty")
			}
			params, err := data.params()
			if err != nil {
				return err
			}
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := data.load(cmd.Context(), app); err != nil {
				return err
			}

			chat := assistant.New(app.Config.Assistant, app.Analytics,
				assistant.WithCompleter(opts.completer(app)),
				assistant.WithLogger(app.Logger),
			)
			reply := chat.SendMessage(cmd.Context(), question, app.Analytics.Filtered(params))
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			if !chat.IsConfigured() || strings.HasPrefix(reply, "Error: ") {
				return fmt.Errorf("no answer from the assistant")
			}
			return nil
		},
	}
	data.register(cmd)
	return cmd
}
