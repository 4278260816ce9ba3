// Package proxy provides HTTP and SOCKS5 proxy servers that admit
// connections by client platform and destination domain.
package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Use-Tusk/osgate/internal/config"
	"github.com/Use-Tusk/osgate/internal/platform"
)

// DefaultListen binds to a random loopback port.
const DefaultListen = "127.0.0.1:0"

// FilterFunc determines if a client on the given platform may connect to
// host:port.
type FilterFunc func(client platform.Type, host string, port int) bool

// HTTPProxy is an HTTP/HTTPS proxy server that classifies each client by
// its browser headers before forwarding.
type HTTPProxy struct {
	server   *http.Server
	listener net.Listener
	filter   FilterFunc
	logger   *slog.Logger
	mu       sync.RWMutex
	running  bool
}

// NewHTTPProxy creates a new HTTP proxy with the given filter.
func NewHTTPProxy(filter FilterFunc, logger *slog.Logger) *HTTPProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProxy{
		filter: filter,
		logger: logger.With("component", "proxy.http"),
	}
}

// Start starts the HTTP proxy on addr, or on a random loopback port when
// addr is empty. It returns the bound port.
func (p *HTTPProxy) Start(addr string) (int, error) {
	if addr == "" {
		addr = DefaultListen
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen: %w", err)
	}

	p.listener = listener
	p.server = &http.Server{
		Handler:           http.HandlerFunc(p.handleRequest),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	go func() {
		if err := p.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			p.logger.Error("HTTP proxy server error", "error", err)
		}
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	p.logger.Debug("HTTP proxy listening", "addr", listener.Addr().String())
	return port, nil
}

// Stop stops the HTTP proxy.
func (p *HTTPProxy) Stop() error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return p.server.Shutdown(ctx)
	}
	return nil
}

// Running reports whether the proxy has been started and not stopped.
func (p *HTTPProxy) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Port returns the port the proxy is listening on.
func (p *HTTPProxy) Port() int {
	if p.listener == nil {
		return 0
	}
	return p.listener.Addr().(*net.TCPAddr).Port
}

// ClientPlatform classifies the client that sent r from its User-Agent and
// Sec-CH-UA-Platform headers.
func ClientPlatform(r *http.Request) platform.Type {
	return platform.DetectFrom(platform.BrowserProbe{Navigator: platform.NavigatorFromRequest(r)})
}

func (p *HTTPProxy) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
	} else {
		p.handleHTTP(w, r)
	}
}

// handleConnect handles HTTPS CONNECT requests (tunnel).
func (p *HTTPProxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	host, port := splitHostPort(r.Host, 443)
	client := ClientPlatform(r)

	if !p.filter(client, host, port) {
		p.logger.Debug("CONNECT blocked", "client", client, "host", host, "port", port)
		http.Error(w, "Connection blocked by platform allowlist", http.StatusForbidden)
		return
	}

	targetConn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 10*time.Second)
	if err != nil {
		p.logger.Debug("CONNECT dial failed", "host", host, "port", port, "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer targetConn.Close()

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "Hijacking not supported", http.StatusInternalServerError)
		return
	}

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, "Failed to hijack connection", http.StatusInternalServerError)
		return
	}
	defer clientConn.Close()

	_, _ = clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, _ = io.Copy(targetConn, clientConn)
		closeWrite(targetConn)
	}()

	go func() {
		defer wg.Done()
		_, _ = io.Copy(clientConn, targetConn)
		closeWrite(clientConn)
	}()

	wg.Wait()
}

// handleHTTP handles regular HTTP proxy requests.
func (p *HTTPProxy) handleHTTP(w http.ResponseWriter, r *http.Request) {
	targetURL, err := url.Parse(r.RequestURI)
	if err != nil || targetURL.Host == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	defaultPort := 80
	if targetURL.Scheme == "https" {
		defaultPort = 443
	}
	host, port := splitHostPort(targetURL.Host, defaultPort)
	client := ClientPlatform(r)

	if !p.filter(client, host, port) {
		p.logger.Debug("HTTP blocked", "client", client, "host", host, "port", port)
		http.Error(w, "Connection blocked by platform allowlist", http.StatusForbidden)
		return
	}

	proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, r.RequestURI, r.Body)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	for key, values := range r.Header {
		for _, value := range values {
			proxyReq.Header.Add(key, value)
		}
	}
	proxyReq.Host = targetURL.Host

	// Remove hop-by-hop headers
	proxyReq.Header.Del("Proxy-Connection")
	proxyReq.Header.Del("Proxy-Authorization")

	upstream := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := upstream.Do(proxyReq)
	if err != nil {
		p.logger.Debug("HTTP request failed", "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func splitHostPort(hostport string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.Trim(hostport, "[]"), defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return host, port
}

func closeWrite(c net.Conn) {
	if tc, ok := c.(interface{ CloseWrite() error }); ok {
		_ = tc.CloseWrite()
	}
}

// CreatePlatformFilter creates a filter function from a config. Clients
// must be on a platform in proxy.allowed_os (which may contain "all");
// destinations are then checked against the domain rules.
func CreatePlatformFilter(cfg *config.Config, logger *slog.Logger) FilterFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "proxy.filter")

	return func(client platform.Type, host string, port int) bool {
		if cfg == nil {
			// No config = deny all
			logger.Debug("no config, denying", "host", host, "port", port)
			return false
		}

		gate := platform.New(platform.WithOS(client), platform.WithLogger(logger))
		if !gate.Permits(cfg.ProxyAllowed()) {
			logger.Debug("client platform not allowed", "client", client, "host", host, "port", port)
			return false
		}

		// Check denied domains first
		for _, denied := range cfg.Proxy.DeniedDomains {
			if config.MatchesDomain(host, denied) {
				logger.Debug("denied by rule", "host", host, "port", port, "rule", denied)
				return false
			}
		}

		if len(cfg.Proxy.AllowedDomains) == 0 {
			return true
		}
		for _, allowed := range cfg.Proxy.AllowedDomains {
			if config.MatchesDomain(host, allowed) {
				logger.Debug("allowed by rule", "host", host, "port", port, "rule", allowed)
				return true
			}
		}

		logger.Debug("no matching rule, denying", "host", host, "port", port)
		return false
	}
}
