package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yoruanime/yoru/internal/proxy"
)

// proxyCmd serves the streaming proxy
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve the range-aware streaming proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")
		if addr == "" {
			addr = cfg.Proxy.Listen
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return proxy.NewServer(&cfg.Proxy, logger).ListenAndServe(ctx, addr)
	},
}

func init() {
	proxyCmd.Flags().StringP("listen", "l", "", "listen address (default: proxy.listen from config)")
}
