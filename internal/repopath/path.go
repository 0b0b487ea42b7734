// Package repopath models repository paths: immutable chains of name and id
// elements, each carrying a version selector, with a text form that
// round-trips through Parse.
package repopath

import (
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

type node struct {
	parent *node
	part   Element
	size   int
}

// Path is an immutable, persistent chain of elements. The zero value is the
// empty (root) path. Paths share their parent chains, so Add is O(1).
type Path struct {
	n *node
}

// Root is the empty path.
var Root = Path{}

// Of builds a path from elements, outermost first.
func Of(elements ...Element) Path {
	p := Root
	for _, e := range elements {
		p = p.Add(e)
	}
	return p
}

func (p Path) IsEmpty() bool { return p.n == nil }

func (p Path) Size() int {
	if p.n == nil {
		return 0
	}
	return p.n.size
}

// Parent returns the path without its last element. The parent of the empty
// path is the empty path.
func (p Path) Parent() Path {
	if p.n == nil {
		return p
	}
	return Path{n: p.n.parent}
}

// Part returns the last element. It is the zero Element for the empty path.
func (p Path) Part() Element {
	if p.n == nil {
		return Element{}
	}
	return p.n.part
}

// Add appends e. A name element with an empty name has no text form and
// is dropped, as Parse drops empty segments.
func (p Path) Add(e Element) Path {
	if e.kind == ElementName && e.name == "" {
		return p
	}
	return Path{n: &node{parent: p.n, part: e, size: p.Size() + 1}}
}

func (p Path) AddName(name string) Path { return p.Add(NameElement(name)) }

func (p Path) AddID(v id.ID) Path { return p.Add(IDElement(v)) }

// AddAll appends every element of sub.
func (p Path) AddAll(sub Path) Path {
	for _, e := range sub.Elements() {
		p = p.Add(e)
	}
	return p
}

// SetVersion replaces the version of the last element.
func (p Path) SetVersion(v Version) Path {
	if p.n == nil {
		return p
	}
	return p.Parent().Add(p.Part().WithVersion(v))
}

// Elements returns the elements outermost first.
func (p Path) Elements() []Element {
	out := make([]Element, p.Size())
	i := len(out) - 1
	for n := p.n; n != nil; n = n.parent {
		out[i] = n.part
		i--
	}
	return out
}

// Left returns the first n elements.
func (p Path) Left(n int) Path {
	for p.Size() > n {
		p = p.Parent()
	}
	return p
}

// RootID returns the id of a leading id element, which anchors the rest of
// the path to that node's subtree.
func (p Path) RootID() (id.ID, bool) {
	if p.n == nil {
		return id.Root, false
	}
	first := p.Left(1).Part()
	if first.IsID() {
		return first.ID(), true
	}
	return id.Root, false
}

// AfterRootID returns the elements following a leading id element, or the
// whole path when it has no such anchor.
func (p Path) AfterRootID() Path {
	if _, ok := p.RootID(); !ok {
		return p
	}
	return Of(p.Elements()[1:]...)
}

// Find returns the longest prefix of p whose last element satisfies pred,
// searching innermost first.
func (p Path) Find(pred func(Element) bool) (Path, bool) {
	for q := p; !q.IsEmpty(); q = q.Parent() {
		if pred(q.Part()) {
			return q, true
		}
	}
	return Root, false
}

// FindFirst is Find searching outermost first.
func (p Path) FindFirst(pred func(Element) bool) (Path, bool) {
	for i, e := range p.Elements() {
		if pred(e) {
			return p.Left(i + 1), true
		}
	}
	return Root, false
}

// IsWildcard reports whether any element carries a pattern.
func (p Path) IsWildcard() bool {
	_, ok := p.Find(Element.IsWildcard)
	return ok
}

func (p Path) Equal(o Path) bool {
	if p.Size() != o.Size() {
		return false
	}
	a, b := p.n, o.n
	for a != nil {
		if a == b {
			return true
		}
		if !a.part.equal(b.part) {
			return false
		}
		a, b = a.parent, b.parent
	}
	return true
}

func (p Path) String() string {
	elements := p.Elements()
	parts := make([]string, len(elements))
	for i, e := range elements {
		parts[i] = e.String()
	}
	return strings.Join(parts, "/")
}
