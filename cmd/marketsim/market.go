package main

import (
	"fmt"
	"strings"

	"marketsim/internal/simulator"

	"github.com/spf13/cobra"
)

func newBackfillCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill [SYMBOL...]",
		Short: "Track symbols and generate a year of history for those that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSimulator(cmd.Context(), func(sim *simulator.Simulator) error {
				for _, sym := range args {
					n, err := sim.Track(cmd.Context(), sym)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d points\n", strings.ToUpper(sym), n)
				}
				return nil
			})
		},
	}
}

func newTickCmd(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Advance every symbol by one or more simulated days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			return a.withSimulator(cmd.Context(), func(sim *simulator.Simulator) error {
				for i := 0; i < count; i++ {
					for _, p := range sim.Loop.Tick(cmd.Context()) {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s O=%s H=%s L=%s C=%s V=%d\n",
							p.Date.Format("2006-01-02"), p.Symbol, p.Open, p.High, p.Low, p.Close, p.Volume)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of simulated days to advance")
	return cmd
}
