package dom

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/Use-Tusk/osgate/internal/platform"
)

const page = `<!DOCTYPE html>
<html><head><title>t</title></head>
<body>
<div id="main" class="card wide">hello</div>
<p id="a">one</p>
<p id="b" class="note">two</p>
</body></html>`

func parsePage(t *testing.T) *html.Node {
	t.Helper()
	doc, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func testGate(os platform.Type, buf *bytes.Buffer) *platform.Gate {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	return platform.New(platform.WithOS(os), platform.WithLogger(logger))
}

func TestNodeIsElement(t *testing.T) {
	doc := parsePage(t)
	if Wrap(doc).IsElement() {
		t.Error("document node reported as element")
	}
	if (Node{}).IsElement() {
		t.Error("zero Node reported as element")
	}
	if !FindByID(doc, "main").IsElement() {
		t.Error("div#main not an element")
	}
}

func TestAddClassIdempotent(t *testing.T) {
	doc := parsePage(t)
	main := FindByID(doc, "main")

	main.AddClass("linux")
	main.AddClass("linux")
	main.AddClass("card")

	got := main.Classes()
	want := []string{"card", "wide", "linux"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Classes() = %v, want %v", got, want)
	}
}

func TestAddClassWithoutClassAttr(t *testing.T) {
	doc := parsePage(t)
	a := FindByID(doc, "a")
	a.AddClass("foo")
	if !a.HasClass("foo") {
		t.Errorf("Classes() = %v, want [foo]", a.Classes())
	}
}

func TestAddClassOnInvalidNode(t *testing.T) {
	var n Node
	n.AddClass("foo")
	if n.Classes() != nil {
		t.Error("zero Node has classes")
	}
}

func TestFindAll(t *testing.T) {
	doc := parsePage(t)
	ps := FindAll(doc, "P")
	if len(ps) != 2 {
		t.Fatalf("FindAll(p) = %d nodes, want 2", len(ps))
	}
	if !ps[1].HasClass("note") {
		t.Errorf("second <p> classes = %v", ps[1].Classes())
	}
}

func TestFindByIDMissing(t *testing.T) {
	if FindByID(parsePage(t), "nope").IsElement() {
		t.Error("FindByID(nope) returned an element")
	}
}

func TestTagByID(t *testing.T) {
	doc := parsePage(t)
	var buf bytes.Buffer
	g := testGate(platform.Linux, &buf)

	Tag(doc, g, platform.Allow("linux"), "os-linux", Selector{ID: "main"})
	Tag(doc, g, platform.Allow("windows"), "os-windows", Selector{ID: "main"})

	main := FindByID(doc, "main")
	if !main.HasClass("os-linux") {
		t.Error("os-linux not applied on linux")
	}
	if main.HasClass("os-windows") {
		t.Error("os-windows applied on linux")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestTagByTag(t *testing.T) {
	doc := parsePage(t)
	var buf bytes.Buffer
	Tag(doc, testGate(platform.MacOS, &buf), platform.Allow("MacOS"), "mac", Selector{Tag: "p"})

	for _, p := range FindAll(doc, "p") {
		if !p.HasClass("mac") {
			t.Errorf("<p> classes = %v, want mac", p.Classes())
		}
	}
}

func TestTagMissingIDWarns(t *testing.T) {
	doc := parsePage(t)
	var buf bytes.Buffer
	Tag(doc, testGate(platform.Linux, &buf), platform.Allow("linux"), "foo", Selector{ID: "nope"})
	if !strings.Contains(buf.String(), "invalid element provided") {
		t.Errorf("missing warning, got %q", buf.String())
	}
}

func TestRenderRoundTrip(t *testing.T) {
	doc := parsePage(t)
	FindByID(doc, "b").AddClass("tagged")

	var out bytes.Buffer
	if err := Render(&out, doc); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out.String(), `class="note tagged"`) {
		t.Errorf("rendered HTML missing class: %s", out.String())
	}
}
