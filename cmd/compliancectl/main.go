// Command compliancectl generates synthetic product data, trains the
// compliance classifier and scores product files in batch.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"food-compliance/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "compliancectl",
		Short:         "Train and run the food product compliance classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logger.Level = logLevel
			}
			cfg.Logger.Format = logFormat

			a.cfg = cfg
			a.logger = config.NewLoggerTo(cfg.Logger, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (json or console)")

	root.AddCommand(
		newGenerateCmd(a),
		newTrainCmd(a),
		newScoreCmd(a),
	)

	return root
}
