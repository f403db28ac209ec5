package main

import (
	"strings"
	"time"

	"marketsim/pkg/client"

	"github.com/spf13/cobra"
)

func newQuoteCmd(a *app) *cobra.Command {
	var (
		baseURL string
		period  string
	)

	cmd := &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Fetch a quote, or a chart with --period, from a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				host := a.cfg.HTTP.Addr
				if strings.HasPrefix(host, ":") {
					host = "localhost" + host
				}
				baseURL = "http://" + host
			}
			c := client.NewRESTClient(baseURL, 0, 10*time.Second)

			if period != "" {
				points, err := c.GetChart(cmd.Context(), args[0], period)
				if err != nil {
					return err
				}
				return printJSON(cmd, points)
			}
			quote, err := c.GetQuote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, quote)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "server base url (default derived from http.addr)")
	cmd.Flags().StringVar(&period, "period", "", "chart period: 1D, 1W, 1M, 3M or 1Y")
	return cmd
}
