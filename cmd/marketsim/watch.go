package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"marketsim/internal/stream"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "watch [SYMBOL...]",
		Short: "Follow live bars and alerts from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if url == "" {
				host := a.cfg.HTTP.Addr
				if strings.HasPrefix(host, ":") {
					host = "localhost" + host
				}
				url = "ws://" + host + "/ws/prices"
			}

			var topics []string
			for _, sym := range args {
				topics = append(topics, stream.KlineTopic(sym), stream.AlertTopic(sym))
			}

			sub := stream.NewSubscriber(url, topics, a.log)
			sub.SetMessageHandler(func(m stream.Message) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", m.Topic, m.Type, m.Data)
			})
			if err := sub.Connect(ctx); err != nil {
				return err
			}
			defer sub.Close()

			if err := sub.Listen(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "websocket url (default derived from http.addr)")
	return cmd
}
