package platform

import (
	"net/http"
	"regexp"
	"runtime"
	"strings"
)

// Probe reads one ambient platform signal.
type Probe interface {
	// Present reports whether the signal exists in this environment.
	Present() bool
	// Classify maps the signal to a platform type. It returns Unknown
	// when nothing matches.
	Classify() Type
}

// Navigator carries the browser navigator fields used for detection.
type Navigator struct {
	Platform  string
	UserAgent string
}

var (
	androidPattern = regexp.MustCompile(`android`)
	applePattern   = regexp.MustCompile(`iphone|ipad|ipod`)
)

// BrowserProbe classifies a browser-style environment.
type BrowserProbe struct {
	Navigator *Navigator
}

func (p BrowserProbe) Present() bool { return p.Navigator != nil }

// Classify checks the platform string first; the user agent is only
// consulted when the platform names none of the desktop systems.
func (p BrowserProbe) Classify() Type {
	if p.Navigator == nil {
		return Unknown
	}
	platform := strings.ToLower(p.Navigator.Platform)
	ua := strings.ToLower(p.Navigator.UserAgent)

	switch {
	case strings.Contains(platform, "win"):
		return Windows
	case strings.Contains(platform, "mac"):
		return MacOS
	case strings.Contains(platform, "linux"):
		return Linux
	case androidPattern.MatchString(ua):
		return Android
	case applePattern.MatchString(ua):
		return Apple
	default:
		return Unknown
	}
}

// ProcessProbe classifies a runtime platform identifier such as GOOS.
type ProcessProbe struct {
	Platform string
}

// NewProcessProbe returns a probe over runtime.GOOS.
func NewProcessProbe() ProcessProbe {
	return ProcessProbe{Platform: runtime.GOOS}
}

func (p ProcessProbe) Present() bool { return p.Platform != "" }

// Classify checks "darwin" before "win", which it contains.
func (p ProcessProbe) Classify() Type {
	platform := strings.ToLower(p.Platform)
	switch {
	case strings.Contains(platform, "darwin"):
		return MacOS
	case strings.Contains(platform, "win"):
		return Windows
	case strings.Contains(platform, "linux"):
		return Linux
	default:
		return Unknown
	}
}

// DetectFrom returns the classification of the first present probe.
// Probes after it are never consulted, even when it yields Unknown.
func DetectFrom(probes ...Probe) Type {
	for _, p := range probes {
		if p == nil || !p.Present() {
			continue
		}
		t := p.Classify()
		if !t.Valid() || t == All {
			return Unknown
		}
		return t
	}
	return Unknown
}

// Client hint header carrying the user agent's platform, e.g. "Windows".
const HeaderUAPlatform = "Sec-CH-UA-Platform"

// NavigatorFromRequest builds the navigator fields a browser would expose
// for the client that sent r. It returns nil when r carries no browser
// signal at all.
func NavigatorFromRequest(r *http.Request) *Navigator {
	if r == nil {
		return nil
	}
	ua := r.Header.Get("User-Agent")
	hint := strings.Trim(strings.TrimSpace(r.Header.Get(HeaderUAPlatform)), `"`)
	if ua == "" && hint == "" {
		return nil
	}

	platform := hint
	if platform == "" {
		platform = NavigatorPlatform(ua)
	}
	return &Navigator{Platform: platform, UserAgent: ua}
}

// NavigatorPlatform derives the value browsers report as
// navigator.platform from a User-Agent string. It returns "" when the
// user agent names no known platform.
func NavigatorPlatform(ua string) string {
	lower := strings.ToLower(ua)
	// iOS user agents contain "like Mac OS X", so check them first.
	switch {
	case strings.Contains(lower, "iphone"):
		return "iPhone"
	case strings.Contains(lower, "ipad"):
		return "iPad"
	case strings.Contains(lower, "ipod"):
		return "iPod"
	case strings.Contains(lower, "windows"):
		return "Win32"
	case strings.Contains(lower, "macintosh"), strings.Contains(lower, "mac os x"):
		return "MacIntel"
	case strings.Contains(lower, "android"):
		return "Linux armv8l"
	case strings.Contains(lower, "cros "), strings.Contains(lower, "linux"):
		if strings.Contains(lower, "aarch64") {
			return "Linux aarch64"
		}
		return "Linux x86_64"
	default:
		return ""
	}
}
