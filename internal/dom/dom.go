// Package dom adapts parsed HTML nodes to platform.Element so documents can
// be tagged with platform-specific classes.
package dom

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/Use-Tusk/osgate/internal/platform"
)

// Node wraps an HTML node. The zero Node is not an element.
type Node struct {
	n *html.Node
}

var _ platform.Element = Node{}

// Wrap returns a Node for n. n may be nil.
func Wrap(n *html.Node) Node { return Node{n: n} }

// HTML returns the underlying node.
func (e Node) HTML() *html.Node { return e.n }

// IsElement reports whether e refers to an element node.
func (e Node) IsElement() bool {
	return e.n != nil && e.n.Type == html.ElementNode
}

// Classes returns the element's classes in document order.
func (e Node) Classes() []string {
	if !e.IsElement() {
		return nil
	}
	return strings.Fields(e.attr("class"))
}

// HasClass reports whether name is in the element's class set.
func (e Node) HasClass(name string) bool {
	return slices.Contains(e.Classes(), name)
}

// AddClass adds name to the class attribute unless it is already there.
func (e Node) AddClass(name string) {
	name = strings.TrimSpace(name)
	if !e.IsElement() || name == "" || e.HasClass(name) {
		return
	}
	e.setAttr("class", strings.Join(append(e.Classes(), name), " "))
}

func (e Node) attr(key string) string {
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func (e Node) setAttr(key, val string) {
	for i, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == key {
			e.n.Attr[i].Val = val
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: key, Val: val})
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Render writes the document rooted at doc.
func Render(w io.Writer, doc *html.Node) error {
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return nil
}

// FindByID returns the first element with the given id attribute. The
// returned Node is not an element when nothing matches.
func FindByID(root *html.Node, id string) Node {
	var found Node
	walk(root, func(n *html.Node) bool {
		if e := Wrap(n); e.IsElement() && e.attr("id") == id {
			found = e
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element with the given tag name.
func FindAll(root *html.Node, tag string) []Node {
	tag = strings.ToLower(tag)
	var out []Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, Wrap(n))
		}
		return true
	})
	return out
}

// walk visits n and its descendants depth first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Selector picks the elements Tag applies a class to. Exactly one of ID
// and Tag should be set.
type Selector struct {
	ID  string
	Tag string
}

// Tag applies className to the selected elements through g. An id that
// matches nothing is passed through as an invalid element, so g logs it.
func Tag(doc *html.Node, g *platform.Gate, allowed platform.AllowList, className string, sel Selector) {
	if sel.Tag != "" {
		for _, e := range FindAll(doc, sel.Tag) {
			g.ApplyClass(e, allowed, className)
		}
		return
	}
	g.ApplyClass(FindByID(doc, sel.ID), allowed, className)
}
