package main

import (
	"os"
	"os/signal"
	"syscall"

	"marketsim/internal/simulator"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, price stream, tick loop and maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sim, err := simulator.Open(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer sim.Close()

			a.log.Info("starting simulator",
				zap.String("environment", a.cfg.Environment),
				zap.String("driver", a.cfg.Database.Driver),
				zap.Duration("tick_interval", a.cfg.Market.TickInterval))
			return sim.Run(ctx)
		},
	}
}
