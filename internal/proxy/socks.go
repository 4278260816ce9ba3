package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/things-go/go-socks5"

	"github.com/Use-Tusk/osgate/internal/platform"
)

// SOCKSProxy is a SOCKS5 proxy server. SOCKS carries no client platform
// signal, so connections are judged against the host's Gate.
type SOCKSProxy struct {
	server   *socks5.Server
	listener net.Listener
	filter   FilterFunc
	gate     *platform.Gate
	allowed  platform.AllowList
	logger   *slog.Logger
	port     int
}

// NewSOCKSProxy creates a new SOCKS5 proxy. Connections are relayed only
// while gate permits allowed and filter accepts the destination.
func NewSOCKSProxy(filter FilterFunc, gate *platform.Gate, allowed platform.AllowList, logger *slog.Logger) *SOCKSProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &SOCKSProxy{
		filter:  filter,
		gate:    gate,
		allowed: allowed,
		logger:  logger.With("component", "proxy.socks"),
	}
}

// gateRuleSet implements socks5.RuleSet.
type gateRuleSet struct {
	filter  FilterFunc
	gate    *platform.Gate
	allowed platform.AllowList
	logger  *slog.Logger
}

func (r *gateRuleSet) Allow(ctx context.Context, req *socks5.Request) (context.Context, bool) {
	host := req.DestAddr.FQDN
	if host == "" {
		host = req.DestAddr.IP.String()
	}
	port := req.DestAddr.Port

	allowed, ok := platform.Run(r.gate, r.allowed, func() bool {
		return r.filter(r.gate.OS(), host, port)
	})
	allowed = ok && allowed
	if allowed {
		r.logger.Debug("allowed", "host", host, "port", port)
	} else {
		r.logger.Debug("blocked", "host", host, "port", port)
	}
	return ctx, allowed
}

// Start starts the SOCKS5 proxy on addr, or on a random loopback port when
// addr is empty.
func (p *SOCKSProxy) Start(addr string) (int, error) {
	if addr == "" {
		addr = DefaultListen
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen: %w", err)
	}
	p.listener = listener
	p.port = listener.Addr().(*net.TCPAddr).Port

	p.server = socks5.NewServer(
		socks5.WithRule(&gateRuleSet{
			filter:  p.filter,
			gate:    p.gate,
			allowed: p.allowed,
			logger:  p.logger,
		}),
	)

	go func() {
		if err := p.server.Serve(p.listener); err != nil {
			p.logger.Debug("server stopped", "error", err)
		}
	}()

	p.logger.Debug("SOCKS5 proxy listening", "addr", listener.Addr().String())
	return p.port, nil
}

// Stop stops the SOCKS5 proxy.
func (p *SOCKSProxy) Stop() error {
	if p.listener != nil {
		return p.listener.Close()
	}
	return nil
}

// Port returns the port the proxy is listening on.
func (p *SOCKSProxy) Port() int {
	return p.port
}
