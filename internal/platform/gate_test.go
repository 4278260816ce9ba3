package platform

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func newTestGate(t *testing.T, os Type) (*Gate, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(WithOS(os), WithLogger(logger)), &buf
}

func warnings(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "level=WARN")
}

type fakeElement struct {
	valid   bool
	classes []string
}

func (e *fakeElement) IsElement() bool { return e != nil && e.valid }

func (e *fakeElement) AddClass(name string) {
	for _, c := range e.classes {
		if c == name {
			return
		}
	}
	e.classes = append(e.classes, name)
}

func TestNewDetectsFromProbes(t *testing.T) {
	g := New(WithProbes(BrowserProbe{Navigator: &Navigator{UserAgent: "iPhone"}}))
	if g.OS() != Apple {
		t.Errorf("OS() = %q, want apple", g.OS())
	}

	g = New(WithProbes())
	if g.OS() != Unknown {
		t.Errorf("OS() with no probes = %q, want unknown", g.OS())
	}
}

func TestWithOSNormalizes(t *testing.T) {
	g := New(WithOS("Windows"))
	if g.OS() != Windows {
		t.Errorf("OS() = %q, want windows", g.OS())
	}
}

func TestDefaultIsMemoized(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Error("Default() returned different gates")
	}
	if a.OS() != Detect() {
		t.Errorf("Default().OS() = %q, want %q", a.OS(), Detect())
	}
}

func TestIsAllowedCaseInsensitive(t *testing.T) {
	g, _ := newTestGate(t, Windows)
	if !g.IsAllowed(Allow("Windows")) {
		t.Error("IsAllowed([Windows]) = false")
	}
	if !g.IsAllowed(AllowList{"windows"}) {
		t.Error("IsAllowed([windows]) = false")
	}
	if !g.IsAllowed(AllowList{"WINDOWS", "linux"}) {
		t.Error("IsAllowed([WINDOWS linux]) = false")
	}
	if g.IsAllowed(Allow("linux")) {
		t.Error("IsAllowed([linux]) = true")
	}
}

func TestIsAllowedIgnoresWildcard(t *testing.T) {
	g, buf := newTestGate(t, Linux)
	if g.IsAllowed(Allow("all")) {
		t.Error("IsAllowed([all]) = true, want false")
	}
	if warnings(buf) != 0 {
		t.Errorf("IsAllowed logged %d warnings, want 0", warnings(buf))
	}
}

func TestRunWildcard(t *testing.T) {
	for _, os := range []Type{Windows, MacOS, Linux, Android, Apple, Unknown} {
		g, buf := newTestGate(t, os)
		got, ok := Run(g, Allow("All"), func() int { return 42 })
		if !ok || got != 42 {
			t.Errorf("Run([All]) on %s = (%d, %v), want (42, true)", os, got, ok)
		}
		if warnings(buf) != 0 {
			t.Errorf("Run([All]) on %s logged a warning", os)
		}
	}
}

func TestRunAllowed(t *testing.T) {
	g, buf := newTestGate(t, MacOS)
	called := 0
	got, ok := Run(g, Allow("MacOS"), func() string {
		called++
		return "ran"
	})
	if !ok || got != "ran" || called != 1 {
		t.Errorf("Run() = (%q, %v) called %d times, want (\"ran\", true) once", got, ok, called)
	}
	if warnings(buf) != 0 {
		t.Error("allowed Run logged a warning")
	}
}

func TestRunRejected(t *testing.T) {
	g, buf := newTestGate(t, Linux)
	called := false
	got, ok := Run(g, Allow("macos", "windows"), func() string {
		called = true
		return "ran"
	})
	if called {
		t.Error("callback invoked on rejected platform")
	}
	if ok || got != "" {
		t.Errorf("Run() = (%q, %v), want zero value and false", got, ok)
	}
	if n := warnings(buf); n != 1 {
		t.Fatalf("logged %d warnings, want 1", n)
	}
	out := buf.String()
	if !strings.Contains(out, "os=linux") || !strings.Contains(out, `allowed="macos, windows"`) {
		t.Errorf("warning missing os or allowed set: %s", out)
	}
}

func TestDo(t *testing.T) {
	g, buf := newTestGate(t, Windows)
	want := errors.New("boom")
	if err := g.Do(Allow("windows"), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do() = %v, want %v", err, want)
	}
	if err := g.Do(Allow("linux"), func() error { return want }); err != nil {
		t.Errorf("rejected Do() = %v, want nil", err)
	}
	if warnings(buf) != 1 {
		t.Errorf("logged %d warnings, want 1", warnings(buf))
	}
}

func TestPermits(t *testing.T) {
	g, _ := newTestGate(t, Android)
	if !g.Permits(Allow("android")) {
		t.Error("Permits([android]) = false")
	}
	if !g.Permits(AllowList{"ALL"}) {
		t.Error("Permits([ALL]) = false")
	}
	if g.Permits(Allow("apple")) {
		t.Error("Permits([apple]) = true")
	}
	if g.Permits(nil) {
		t.Error("Permits(nil) = true")
	}
}

func TestApplyClass(t *testing.T) {
	g, buf := newTestGate(t, Linux)
	el := &fakeElement{valid: true}

	g.ApplyClass(el, Allow("linux"), "foo")
	g.ApplyClass(el, Allow("Linux"), "foo")
	if len(el.classes) != 1 || el.classes[0] != "foo" {
		t.Errorf("classes = %v, want [foo]", el.classes)
	}

	g.ApplyClass(el, Allow("macos"), "bar")
	if len(el.classes) != 1 {
		t.Errorf("classes = %v after mismatched platform, want [foo]", el.classes)
	}
	if warnings(buf) != 0 {
		t.Errorf("mismatch logged %d warnings, want 0", warnings(buf))
	}
}

func TestApplyClassIgnoresWildcard(t *testing.T) {
	g, _ := newTestGate(t, Linux)
	el := &fakeElement{valid: true}
	g.ApplyClass(el, Allow("all"), "foo")
	if len(el.classes) != 0 {
		t.Errorf("classes = %v, want none", el.classes)
	}
}

func TestApplyClassInvalidElement(t *testing.T) {
	g, buf := newTestGate(t, Linux)

	g.ApplyClass(nil, Allow("linux"), "foo")
	var typedNil *fakeElement
	g.ApplyClass(typedNil, Allow("linux"), "foo")
	notElement := &fakeElement{valid: false}
	g.ApplyClass(notElement, Allow("linux"), "foo")

	if len(notElement.classes) != 0 {
		t.Errorf("invalid element got classes %v", notElement.classes)
	}
	if n := warnings(buf); n != 3 {
		t.Errorf("logged %d warnings, want 3", n)
	}
	if !strings.Contains(buf.String(), "invalid element provided") {
		t.Errorf("warning text missing: %s", buf.String())
	}
}

func TestRepeatedCallsAreStable(t *testing.T) {
	g, _ := newTestGate(t, MacOS)
	allowed := Allow("macos")
	for i := 0; i < 5; i++ {
		if !g.IsAllowed(allowed) || !g.Permits(allowed) || g.OS() != MacOS {
			t.Fatalf("iteration %d: results changed", i)
		}
		if _, ok := Run(g, allowed, func() bool { return true }); !ok {
			t.Fatalf("iteration %d: Run rejected", i)
		}
	}
	if len(allowed) != 1 || allowed[0] != MacOS {
		t.Errorf("allow list mutated: %v", allowed)
	}
}

func TestGateConcurrentUse(t *testing.T) {
	g, _ := newTestGate(t, Windows)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !g.IsAllowed(Allow("windows")) {
				t.Error("IsAllowed() = false")
			}
		}()
	}
	wg.Wait()
}
