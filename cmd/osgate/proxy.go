package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Use-Tusk/osgate/cmd/osgate/ui"
	"github.com/Use-Tusk/osgate/internal/proxy"
)

func proxyCmd(a *app) *cobra.Command {
	var socksListen string

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run HTTP and SOCKS5 proxies gated by platform",
		Long: `Run HTTP and SOCKS5 proxies gated by platform.

The HTTP proxy classifies each client from its User-Agent and
Sec-CH-UA-Platform headers and admits it when the platform is listed in
proxy.allowed_os. The SOCKS5 proxy relays connections only while the
host platform is in allowed_os. Both apply the proxy domain rules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.Default()
			filter := proxy.CreatePlatformFilter(a.cfg, logger)

			httpProxy := proxy.NewHTTPProxy(filter, logger)
			httpPort, err := httpProxy.Start(a.cfg.Proxy.Listen)
			if err != nil {
				return fmt.Errorf("start HTTP proxy: %w", err)
			}
			defer httpProxy.Stop()

			socksProxy := proxy.NewSOCKSProxy(filter, a.gate, a.cfg.Allowed(), logger)
			socksPort, err := socksProxy.Start(socksListen)
			if err != nil {
				return fmt.Errorf("start SOCKS5 proxy: %w", err)
			}
			defer socksProxy.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.SuccessMsg("Proxies running on %s", a.gate.OS()))
			fmt.Fprint(out, ui.KeyValues("  ",
				ui.KV("HTTP", strconv.Itoa(httpPort)),
				ui.KV("SOCKS5", strconv.Itoa(socksPort)),
				ui.KV("Clients", a.cfg.ProxyAllowed().String()),
				ui.KV("Host", a.cfg.Allowed().String()),
			))
			if !a.gate.Permits(a.cfg.Allowed()) {
				fmt.Fprintln(out, ui.WarnMsg("host platform %s is not in allowed_os; SOCKS5 connections will be refused", a.gate.OS()))
			}

			<-ctx.Done()
			slog.Info("shutting down proxies")
			return nil
		},
	}
	cmd.Flags().StringVar(&socksListen, "socks-listen", proxy.DefaultListen, "SOCKS5 listen address")
	return cmd
}
