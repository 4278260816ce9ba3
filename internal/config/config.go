// Package config loads osgate configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Use-Tusk/osgate/internal/platform"
)

// Application name for XDG paths
const AppName = "osgate"

// Defaults
const (
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	DefaultProxyListen = "127.0.0.1:0"
)

// Environment overrides
const (
	EnvLogLevel       = "OSGATE_LOG_LEVEL"
	EnvLogFormat      = "OSGATE_LOG_FORMAT"
	EnvAllowedOS      = "OSGATE_ALLOWED_OS"
	EnvProxyAllowedOS = "OSGATE_PROXY_ALLOWED_OS"
)

// Config is the osgate configuration.
type Config struct {
	Log       LogConfig   `yaml:"log"`
	AllowedOS []string    `yaml:"allowed_os"`
	Proxy     ProxyConfig `yaml:"proxy"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ProxyConfig controls which clients and destinations the proxies admit.
type ProxyConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOS      []string `yaml:"allowed_os"`
	AllowedDomains []string `yaml:"allowed_domains"`
	DeniedDomains  []string `yaml:"denied_domains"`
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		AllowedOS: []string{string(platform.All)},
		Proxy: ProxyConfig{
			Listen:    DefaultProxyListen,
			AllowedOS: []string{string(platform.All)},
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/osgate/config.yaml, falling back to
// ~/.config/osgate/config.yaml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName, "config.yaml")
}

// Load reads the config at path, applies environment overrides and
// validates the result. A missing file yields the defaults. An empty path
// means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvAllowedOS); v != "" {
		c.AllowedOS = splitList(v)
	}
	if v := os.Getenv(EnvProxyAllowedOS); v != "" {
		c.Proxy.AllowedOS = splitList(v)
	}
}

// Validate rejects unknown platform labels and malformed domain patterns.
func (c *Config) Validate() error {
	if bad := platform.Allow(c.AllowedOS...).Invalid(); len(bad) > 0 {
		return fmt.Errorf("%w: allowed_os: unknown platforms %v", ErrInvalid, bad)
	}
	if bad := platform.Allow(c.Proxy.AllowedOS...).Invalid(); len(bad) > 0 {
		return fmt.Errorf("%w: proxy.allowed_os: unknown platforms %v", ErrInvalid, bad)
	}
	for _, d := range append(append([]string{}, c.Proxy.AllowedDomains...), c.Proxy.DeniedDomains...) {
		if err := validateDomainPattern(d); err != nil {
			return fmt.Errorf("%w: proxy domains: %w", ErrInvalid, err)
		}
	}
	return nil
}

// Allowed returns the top-level allow list.
func (c *Config) Allowed() platform.AllowList {
	return platform.Allow(c.AllowedOS...)
}

// ProxyAllowed returns the proxy client allow list.
func (c *Config) ProxyAllowed() platform.AllowList {
	return platform.Allow(c.Proxy.AllowedOS...)
}

func validateDomainPattern(pattern string) error {
	p := strings.TrimPrefix(pattern, "*.")
	if p == "" || strings.ContainsAny(p, "*/: ") {
		return fmt.Errorf("bad domain pattern %q", pattern)
	}
	return nil
}

// MatchesDomain reports whether host matches pattern. A pattern of the
// form "*.example.com" matches subdomains of example.com but not
// example.com itself.
func MatchesDomain(host, pattern string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	pattern = strings.ToLower(pattern)
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return strings.HasSuffix(host, "."+suffix)
	}
	return host == pattern
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
