package dms

import (
	"context"
	"iter"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// Database is the repository store. Reads that may return many rows stream
// on a pooled connection that is released when iteration ends; everything
// else happens inside a Tx.
type Database interface {
	// Begin starts a unit of work.
	Begin(ctx context.Context) (Tx, error)

	// Links streams the document links matching a (possibly wildcard) path.
	Links(ctx context.Context, path repopath.Path, opts SearchOptions) iter.Seq2[*DocumentLink, error]

	// Folders streams the workspaces matching a (possibly wildcard) path.
	Folders(ctx context.Context, path repopath.Path, opts SearchOptions) iter.Seq2[*Folder, error]

	// Documents streams stored documents: every version when history is
	// set, otherwise only the latest version of each document.
	Documents(ctx context.Context, history bool) iter.Seq2[*Document, error]

	// Close closes the database connection.
	Close() error
}

// Tx is a transaction against the repository store. Lookups return a nil
// object and a nil error when nothing matches.
type Tx interface {
	Commit() error
	Rollback() error

	// Lookups

	GetInfo(ctx context.Context, path repopath.Path) (*Info, error)
	GetInfos(ctx context.Context, path repopath.Path) ([]*Info, error)
	GetFolder(ctx context.Context, path repopath.Path) (*Folder, error)
	GetFolders(ctx context.Context, path repopath.Path, opts SearchOptions) ([]*Folder, error)
	GetDocumentLink(ctx context.Context, path repopath.Path) (*DocumentLink, error)
	GetDocumentLinks(ctx context.Context, path repopath.Path, opts SearchOptions) ([]*DocumentLink, error)

	// GetDocument returns the referenced version, or the latest version when
	// ref.Version is id.Root.
	GetDocument(ctx context.Context, ref Reference) (*Document, error)

	// GetDocumentHistory returns every version of a document, oldest first.
	GetDocumentHistory(ctx context.Context, docID id.ID) ([]*Document, error)

	// GetPathTo returns the path of a node. ok is false when no such node
	// exists.
	GetPathTo(ctx context.Context, nodeID id.ID) (path repopath.Path, ok bool, err error)

	// GetOrCreateFolder resolves a workspace path, creating the missing
	// workspaces along it when createMissing is set.
	GetOrCreateFolder(ctx context.Context, path repopath.Path, createMissing bool) (*Folder, error)

	// GenerateUniqueName returns template, or a variant of it, that no child
	// of folderID uses yet.
	GenerateUniqueName(ctx context.Context, folderID id.ID, template string) (string, error)

	// Mutations

	CreateFolder(ctx context.Context, parent *Folder, name string, state State, metadata Metadata) (*Folder, error)
	UpdateFolder(ctx context.Context, folder *Folder, state State, metadata Metadata) (*Folder, error)

	// CreateDocument records a new document and its first version.
	CreateDocument(ctx context.Context, doc *Document) error

	// CreateVersion records a new version of an existing document and moves
	// every link that is not fixed to it.
	CreateVersion(ctx context.Context, doc *Document) error

	CreateDocumentLink(ctx context.Context, parent *Folder, name string, ref Reference) (*DocumentLink, error)
	UpdateDocumentLink(ctx context.Context, link *DocumentLink, ref Reference) (*DocumentLink, error)

	CopyFolder(ctx context.Context, src, dst repopath.Path, createParent bool) (*Folder, error)
	CopyDocumentLink(ctx context.Context, src, dst repopath.Path, createParent bool) (*DocumentLink, error)

	// Publish copies a node and its subtree under the same parent with the
	// given version label and fixes the copied links. It returns the id of
	// the copy.
	Publish(ctx context.Context, nodeID id.ID, label string) (id.ID, error)

	DeleteObject(ctx context.Context, path repopath.Path) ([]Object, error)
	UndeleteObject(ctx context.Context, path repopath.Path) ([]Object, error)

	// LockVersions fixes every link in the subtree of folderID to its current
	// document version; UnlockVersions releases them.
	LockVersions(ctx context.Context, folderID id.ID) error
	UnlockVersions(ctx context.Context, folderID id.ID) error

	UpdateDigest(ctx context.Context, ref Reference, digest []byte) error
}
