// Package cli implements repairctl, the command line companion of the repair
// dashboard. It works on the same import history database as the web server.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"repair-dashboard/internal/assistant"
)

// rootOptions carries the global flags and how commands get their
// dependencies.
type rootOptions struct {
	verbose      bool
	newApp       func(verbose bool) (*AppContext, error)
	newCompleter func() assistant.Completer
}

func (o *rootOptions) app() (*AppContext, error) {
	return o.newApp(o.verbose)
}

func (o *rootOptions) completer(app *AppContext) assistant.Completer {
	if o.newCompleter != nil {
		return o.newCompleter()
	}
	return assistant.NewOpenAIClient(app.Config.Assistant)
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repairctl",
		Short: "Vehicle repair analytics from the command line",
		Long: `repairctl imports repair sheets and reports on them without the web dashboard.

It reads the same configuration (.env.local, .env and the environment) and
the same import history database as the server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")

	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newImportsCmd(opts))
	cmd.AddCommand(newActivateCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newSummaryCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(&rootOptions{newApp: func(verbose bool) (*AppContext, error) {
		return NewAppContext(verbose)
	}})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
