package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"marketsim/internal/simulator"
	"marketsim/internal/trading"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newOrderCmd(a *app) *cobra.Command {
	var (
		user  int64
		limit string
	)

	cmd := &cobra.Command{
		Use:   "order buy|sell SYMBOL QUANTITY",
		Short: "Place a paper order for a user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("bad quantity %q: %w", args[2], err)
			}
			order := trading.Order{
				Symbol:   args[1],
				Side:     trading.Side(args[0]),
				Type:     trading.OrderMarket,
				Quantity: qty,
			}
			if limit != "" {
				price, err := decimal.NewFromString(limit)
				if err != nil {
					return fmt.Errorf("bad --limit: %w", err)
				}
				order.Type = trading.OrderLimit
				order.LimitPrice = &price
			}

			return a.withSimulator(cmd.Context(), func(sim *simulator.Simulator) error {
				result, err := sim.Trading.PlaceOrder(cmd.Context(), user, order)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().Int64Var(&user, "user", 1, "user id that owns the paper account")
	cmd.Flags().StringVar(&limit, "limit", "", "limit price; omit for a market order")
	return cmd
}

func newPortfolioCmd(a *app) *cobra.Command {
	var (
		user   int64
		trades int
		reset  bool
	)

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show a user's marked-to-market portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSimulator(cmd.Context(), func(sim *simulator.Simulator) error {
				if reset {
					if _, err := sim.Trading.Reset(cmd.Context(), user); err != nil {
						return err
					}
				}
				portfolio, err := sim.Trading.PortfolioSummary(cmd.Context(), user)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, portfolio); err != nil {
					return err
				}
				if trades <= 0 {
					return nil
				}
				history, err := sim.Trading.TradeHistory(cmd.Context(), user, trades)
				if err != nil {
					return err
				}
				return printJSON(cmd, history)
			})
		},
	}
	cmd.Flags().Int64Var(&user, "user", 1, "user id that owns the paper account")
	cmd.Flags().IntVar(&trades, "trades", 0, "also print this many recent trades")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset the account to the starting cash first")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
