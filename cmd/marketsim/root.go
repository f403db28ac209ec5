package main

import (
	"context"
	"fmt"

	"marketsim/config"
	"marketsim/internal/simulator"
	"marketsim/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is shared by every subcommand once the root pre-run has loaded it.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "marketsim",
		Short: "Synthetic stock market with paper trading and price alerts",
		Long: `marketsim generates a bounded daily OHLCV series per symbol, settles
paper orders against the latest close and fires one-shot price alerts.

Run "marketsim serve" for the HTTP API, websocket stream and tick loop, or use
the other commands to operate on the same database from the shell.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is config/config.yaml)")

	cmd.AddCommand(
		newServeCmd(a),
		newBackfillCmd(a),
		newTickCmd(a),
		newOrderCmd(a),
		newPortfolioCmd(a),
		newWatchCmd(a),
		newQuoteCmd(a),
	)
	return cmd
}

// withSimulator opens the database, bootstraps symbols and runs fn.
func (a *app) withSimulator(ctx context.Context, fn func(*simulator.Simulator) error) error {
	sim, err := simulator.Open(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer sim.Close()

	if err := sim.Bootstrap(ctx); err != nil {
		return err
	}
	return fn(sim)
}
