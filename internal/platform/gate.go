package platform

import (
	"log/slog"
	"sync"
)

// Element is a UI node that can carry CSS classes.
type Element interface {
	// IsElement reports whether the value refers to a real element node.
	IsElement() bool
	// AddClass adds name to the element's class set. Adding a class that
	// is already present is a no-op.
	AddClass(name string)
}

// Gate restricts actions to a set of platforms. The platform is detected
// once when the Gate is built and never changes afterwards, so a Gate is
// safe for concurrent use.
type Gate struct {
	os     Type
	logger *slog.Logger
}

// Option configures a Gate.
type Option func(*gateOptions)

type gateOptions struct {
	probes []Probe
	pinned Type
	logger *slog.Logger
}

// WithProbes replaces the default process probe. Probes are tried in order.
func WithProbes(probes ...Probe) Option {
	return func(o *gateOptions) { o.probes = probes }
}

// WithOS skips detection and uses t as the detected platform.
func WithOS(t Type) Option {
	return func(o *gateOptions) { o.pinned = Normalize(string(t)) }
}

// WithLogger sets the sink for rejection warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *gateOptions) { o.logger = l }
}

// New detects the platform and returns a Gate holding the result.
func New(opts ...Option) *Gate {
	o := gateOptions{probes: []Probe{NewProcessProbe()}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	os := o.pinned
	if os == "" {
		os = DetectFrom(o.probes...)
	}
	return &Gate{
		os:     os,
		logger: o.logger.With("component", "platform"),
	}
}

var (
	defaultOnce sync.Once
	defaultGate *Gate
)

// Default returns the process-wide Gate, detecting the platform on first
// use. Prefer passing a Gate explicitly; Default is for callers that have
// nothing to inject.
func Default() *Gate {
	defaultOnce.Do(func() {
		defaultGate = New()
	})
	return defaultGate
}

// OS returns the detected platform.
func (g *Gate) OS() Type { return g.os }

// IsAllowed reports whether the detected platform appears in allowed.
// The All wildcard is not honoured here.
func (g *Gate) IsAllowed(allowed AllowList) bool {
	return allowed.Contains(g.os)
}

// Permits reports whether Run would invoke its callback for allowed:
// the detected platform is listed, or the list contains All.
func (g *Gate) Permits(allowed AllowList) bool {
	allowed = allowed.Normalized()
	return allowed.Contains(g.os) || allowed.Contains(All)
}

// Run calls fn and returns its result when g permits allowed. Otherwise
// fn is not called, a warning is logged, and Run returns the zero value
// and false.
func Run[T any](g *Gate, allowed AllowList, fn func() T) (T, bool) {
	if !g.Permits(allowed) {
		g.warnRestricted(allowed)
		var zero T
		return zero, false
	}
	return fn(), true
}

// Do is Run for callbacks that only report an error. A rejected call
// logs a warning and returns nil.
func (g *Gate) Do(allowed AllowList, fn func() error) error {
	err, _ := Run(g, allowed, fn)
	return err
}

// ApplyClass adds className to el when the detected platform appears in
// allowed. An invalid element is logged and ignored. A platform mismatch
// is silent.
func (g *Gate) ApplyClass(el Element, allowed AllowList, className string) {
	if el == nil || !el.IsElement() {
		g.logger.Warn("invalid element provided", "class", className)
		return
	}
	if g.IsAllowed(allowed) {
		el.AddClass(className)
	}
}

func (g *Gate) warnRestricted(allowed AllowList) {
	g.logger.Warn("function is restricted on this platform",
		"os", g.os.String(),
		"allowed", allowed.String())
}
