package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/survival-check/internal/config"
	"github.com/example/survival-check/internal/logging"
	"github.com/example/survival-check/internal/scorer"
)

// app is populated by the root command before any subcommand runs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var baseURL string

	cmd := &cobra.Command{
		Use:          "survival-check",
		Short:        "Ask a remote scoring service whether a passenger would survive",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("base-url") {
				cfg.Scorer.BaseURL = baseURL
			}
			logger, err := logging.NewLogger(cfg.Log.Level)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&baseURL, "base-url", config.DefaultBaseURL, "root URL of the scoring service")

	cmd.AddCommand(
		newServeCommand(a),
		newPredictCommand(a),
		newBatchCommand(a),
	)
	return cmd
}

func (a *app) scorerClient() (*scorer.Client, error) {
	client, err := scorer.New(a.cfg.Scorer.BaseURL,
		scorer.WithTimeout(a.cfg.Scorer.Timeout),
		scorer.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("scorer client: %w", err)
	}
	return client, nil
}
