package repopath

import (
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// ElementKind discriminates the Element union.
type ElementKind int

const (
	// ElementName is a name pattern element.
	ElementName ElementKind = iota
	// ElementID addresses a node (or, below a folder, a document) by id.
	ElementID
)

// Element is one step of a Path.
type Element struct {
	kind    ElementKind
	name    string
	id      id.ID
	version Version
}

// NameElement returns an element matching the given (unescaped) name pattern.
func NameElement(name string) Element {
	return Element{kind: ElementName, name: name}
}

// IDElement returns an element addressing an id.
func IDElement(v id.ID) Element {
	return Element{kind: ElementID, id: v}
}

func (e Element) Kind() ElementKind { return e.kind }
func (e Element) IsID() bool        { return e.kind == ElementID }

// Name returns the unescaped name pattern; empty for id elements.
func (e Element) Name() string { return e.name }

// ID returns the addressed id; Root for name elements.
func (e Element) ID() id.ID { return e.id }

func (e Element) Version() Version { return e.version }

// WithVersion returns a copy of e carrying v.
func (e Element) WithVersion(v Version) Element {
	e.version = v
	return e
}

// EscapedName returns the form stored in the NAME column.
func (e Element) EscapedName() string { return Escape(e.name) }

// IsWildcard reports whether the name or the version is a pattern.
func (e Element) IsWildcard() bool {
	if e.version.IsWildcard() {
		return true
	}
	return e.kind == ElementName && strings.Contains(e.name, "*")
}

func (e Element) String() string {
	if e.kind == ElementID {
		return "~" + e.id.String() + e.version.String()
	}
	return Escape(e.name) + e.version.String()
}

func (e Element) equal(o Element) bool {
	return e.kind == o.kind && e.name == o.name && e.id == o.id && e.version == o.version
}
