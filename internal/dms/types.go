// Package dms holds the repository domain: folders (workspaces), document
// links and document versions, the interfaces of the storage layers, and the
// Service that orchestrates them.
package dms

import (
	"fmt"
	"strings"
	"time"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// NodeType is the kind of a node in the hierarchy.
type NodeType string

const (
	TypeWorkspace    NodeType = "WORKSPACE"
	TypeDocumentLink NodeType = "DOCUMENT_LINK"
)

// State is the lifecycle state of a workspace. Only Open workspaces accept
// changes to their contents.
type State string

const (
	StateOpen      State = "Open"
	StateClosed    State = "Closed"
	StateFinalized State = "Finalized"
)

// States lists every valid State.
var States = []any{StateOpen, StateClosed, StateFinalized}

// Reference identifies one version of a document.
type Reference struct {
	ID      id.ID
	Version id.ID
}

func (r Reference) String() string {
	return fmt.Sprintf("%s@%s", r.ID, r.Version)
}

// ParseReference reads the form produced by Reference.String. A reference
// without a version has Version == id.Root.
func ParseReference(s string) (Reference, error) {
	docPart, versionPart, hasVersion := strings.Cut(s, "@")
	docID, err := id.Parse(docPart)
	if err != nil {
		return Reference{}, &ReferenceError{Text: s}
	}
	ref := Reference{ID: docID}
	if hasVersion {
		if ref.Version, err = id.Parse(versionPart); err != nil {
			return Reference{}, &ReferenceError{Text: s}
		}
	}
	return ref, nil
}

// Document is one stored version of a document.
type Document struct {
	Reference
	MediaType string
	Length    int64
	Digest    []byte
	Metadata  Metadata
	Latest    bool
	Created   time.Time
}

// Object is a named node: a *Folder or a *DocumentLink.
type Object interface {
	ObjectID() id.ID
	ObjectPath() repopath.Path
	ObjectType() NodeType
}

// Folder is a workspace.
type Folder struct {
	ID       id.ID
	ParentID id.ID
	Path     repopath.Path
	Version  string
	State    State
	Metadata Metadata
	Deleted  bool
}

func (f *Folder) ObjectID() id.ID           { return f.ID }
func (f *Folder) ObjectPath() repopath.Path { return f.Path }
func (f *Folder) ObjectType() NodeType      { return TypeWorkspace }

// DocumentLink places a document version in a workspace under a name.
type DocumentLink struct {
	ID       id.ID
	ParentID id.ID
	Path     repopath.Path
	Version  string
	Reference
	MediaType string
	Length    int64
	Digest    []byte
	Metadata  Metadata
	Deleted   bool
	// Current is false for rows describing an older version of the linked
	// document.
	Current bool
}

func (l *DocumentLink) ObjectID() id.ID           { return l.ID }
func (l *DocumentLink) ObjectPath() repopath.Path { return l.Path }
func (l *DocumentLink) ObjectType() NodeType      { return TypeDocumentLink }

// Info is the type-dispatch projection of a node.
type Info struct {
	ID       id.ID
	ParentID id.ID
	Name     string
	Version  string
	Type     NodeType
	Deleted  bool
}

// Options are flags modifying service operations.
type Options uint

const (
	// CreateMissingParent creates absent ancestor workspaces.
	CreateMissingParent Options = 1 << iota
	// CreateMissingItem turns an update of an absent object into a create.
	CreateMissingItem
	// ReturnExistingLinkToSameDocument makes linking a document that is
	// already linked in the workspace return the existing link.
	ReturnExistingLinkToSameDocument
	// NoImplicitWildcard stops CatalogueByName from appending '*'.
	NoImplicitWildcard
	// FreeSearch includes deleted objects in searches.
	FreeSearch
	// AllVersions makes CatalogueByName list every version of matching
	// links.
	AllVersions
)

// Has reports whether every flag in o is set.
func (opts Options) Has(o Options) bool { return opts&o == o }

// SearchOptions tune path searches.
type SearchOptions struct {
	IncludeDeleted bool
	// AllVersions returns every version of each matching link rather than
	// only the current one.
	AllVersions bool
}
