package repopath

import (
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// VersionKind discriminates the Version union.
type VersionKind int

const (
	// VersionNone selects the current working version.
	VersionNone VersionKind = iota
	// VersionNamed selects a published label.
	VersionNamed
	// VersionByID pins an exact document version.
	VersionByID
	// VersionWildcard matches labels during search only.
	VersionWildcard
)

func (k VersionKind) String() string {
	switch k {
	case VersionNone:
		return "none"
	case VersionNamed:
		return "named"
	case VersionByID:
		return "id"
	case VersionWildcard:
		return "wildcard"
	default:
		return "unknown"
	}
}

// Version is a version selector carried by every path element.
type Version struct {
	kind VersionKind
	name string
	id   id.ID
}

// None is the selector for the current working version.
func None() Version { return Version{} }

// Named returns a label selector. A label containing '*' becomes a wildcard
// and an empty label is None.
func Named(name string) Version {
	if name == "" {
		return None()
	}
	if strings.Contains(name, "*") {
		return Wildcard(name)
	}
	return Version{kind: VersionNamed, name: name}
}

// ByID pins an exact version.
func ByID(v id.ID) Version { return Version{kind: VersionByID, id: v} }

// Wildcard returns a search-only pattern selector. An empty pattern is None.
func Wildcard(pattern string) Version {
	if pattern == "" {
		return None()
	}
	return Version{kind: VersionWildcard, name: pattern}
}

func (v Version) Kind() VersionKind { return v.kind }

// Name returns the label or pattern; empty for None and ByID.
func (v Version) Name() string { return v.name }

// ID returns the pinned version id; Root unless Kind is VersionByID.
func (v Version) ID() id.ID { return v.id }

func (v Version) IsNone() bool     { return v.kind == VersionNone }
func (v Version) IsWildcard() bool { return v.kind == VersionWildcard }

// Escaped returns the form stored in the VERSION column.
func (v Version) Escaped() string {
	switch v.kind {
	case VersionNamed, VersionWildcard:
		return Escape(v.name)
	case VersionByID:
		return v.id.String()
	default:
		return ""
	}
}

// String returns the path suffix for this selector, including the '@'.
func (v Version) String() string {
	switch v.kind {
	case VersionNamed, VersionWildcard:
		return "@" + Escape(v.name)
	case VersionByID:
		return "@~" + v.id.String()
	default:
		return ""
	}
}
