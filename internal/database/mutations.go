package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

func (t *Tx) now() any { return t.s.clock.Now().UTC() }

// anchored addresses a node by id alone.
func anchored(nodeID id.ID) repopath.Path { return repopath.Root.AddID(nodeID) }

func (t *Tx) insertNode(ctx context.Context, nodeID, parentID id.ID, name string, nodeType dms.NodeType) error {
	_, err := t.exec(ctx, statement.Of(createNode).
		Bind("id", nodeID).
		Bind("parentId", parentID).
		BindString("name", repopath.Escape(name)).
		BindString("type", string(nodeType)).
		Bind("created", t.now()))
	if err != nil {
		return fmt.Errorf("inserting node %q: %w", name, conflict(err))
	}
	return nil
}

// conflict maps a sibling uniqueness violation to dms.ErrNameConflict.
func conflict(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %w", dms.ErrNameConflict, err)
	}
	return err
}

func (t *Tx) CreateFolder(ctx context.Context, parent *dms.Folder, name string, state dms.State, metadata dms.Metadata) (*dms.Folder, error) {
	folderID := t.s.ids.New()
	if err := t.insertNode(ctx, folderID, parent.ID, name, dms.TypeWorkspace); err != nil {
		return nil, err
	}
	_, err := t.exec(ctx, statement.Of(createFolder).
		Bind("id", folderID).
		BindString("state", string(state)).
		BindString("metadata", dms.EncodeMetadata(metadata)))
	if err != nil {
		return nil, fmt.Errorf("inserting folder %q: %w", name, err)
	}
	t.s.logger.Debug("folder created", "id", folderID, "parent", parent.ID, "name", name)
	return t.mustGetFolder(ctx, folderID)
}

func (t *Tx) UpdateFolder(ctx context.Context, folder *dms.Folder, state dms.State, metadata dms.Metadata) (*dms.Folder, error) {
	n, err := t.exec(ctx, statement.Of(updateFolder).
		BindString("state", string(state)).
		BindString("metadata", dms.EncodeMetadata(metadata)).
		Bind("id", folder.ID))
	if err != nil {
		return nil, fmt.Errorf("updating folder %s: %w", folder.ID, err)
	}
	if n == 0 {
		return nil, nil
	}
	return t.mustGetFolder(ctx, folder.ID)
}

func (t *Tx) mustGetFolder(ctx context.Context, folderID id.ID) (*dms.Folder, error) {
	f, err := t.GetFolder(ctx, anchored(folderID))
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("folder %s vanished", folderID)
	}
	return f, nil
}

func (t *Tx) mustGetLink(ctx context.Context, linkID id.ID) (*dms.DocumentLink, error) {
	l, err := t.GetDocumentLink(ctx, anchored(linkID))
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("link %s vanished", linkID)
	}
	return l, nil
}

func (t *Tx) insertVersion(ctx context.Context, doc *dms.Document) error {
	_, err := t.exec(ctx, statement.Of(createVersion).
		Bind("documentId", doc.ID).
		Bind("versionId", doc.Version).
		BindString("mediaType", doc.MediaType).
		BindInt64("length", doc.Length).
		BindBytes("digest", doc.Digest).
		BindString("metadata", dms.EncodeMetadata(doc.Metadata)).
		Bind("created", t.now()))
	if err != nil {
		return fmt.Errorf("inserting version %s: %w", doc.Reference, err)
	}
	return nil
}

func (t *Tx) CreateDocument(ctx context.Context, doc *dms.Document) error {
	_, err := t.exec(ctx, statement.Of(createDocument).
		Bind("documentId", doc.ID).
		Bind("versionId", doc.Version))
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return t.insertVersion(ctx, doc)
}

func (t *Tx) CreateVersion(ctx context.Context, doc *dms.Document) error {
	if err := t.insertVersion(ctx, doc); err != nil {
		return err
	}
	n, err := t.exec(ctx, statement.Of(updateDocument).
		Bind("versionId", doc.Version).
		Bind("documentId", doc.ID))
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}
	if n == 0 {
		return &dms.DocumentIDError{ID: doc.ID.String()}
	}
	moved, err := t.exec(ctx, statement.Of(moveUnfixedLinks).
		Bind("versionId", doc.Version).
		Bind("documentId", doc.ID))
	if err != nil {
		return fmt.Errorf("moving links of %s: %w", doc.ID, err)
	}
	t.s.logger.Debug("version created", "document", doc.ID, "version", doc.Version, "links", moved)
	return nil
}

func (t *Tx) CreateDocumentLink(ctx context.Context, parent *dms.Folder, name string, ref dms.Reference) (*dms.DocumentLink, error) {
	linkID := t.s.ids.New()
	if err := t.insertNode(ctx, linkID, parent.ID, name, dms.TypeDocumentLink); err != nil {
		return nil, err
	}
	_, err := t.exec(ctx, statement.Of(createLink).
		Bind("id", linkID).
		Bind("documentId", ref.ID).
		Bind("versionId", ref.Version).
		BindBool("fixed", false))
	if err != nil {
		return nil, fmt.Errorf("inserting link %q: %w", name, err)
	}
	return t.mustGetLink(ctx, linkID)
}

func (t *Tx) UpdateDocumentLink(ctx context.Context, link *dms.DocumentLink, ref dms.Reference) (*dms.DocumentLink, error) {
	n, err := t.exec(ctx, statement.Of(updateLink).
		Bind("documentId", ref.ID).
		Bind("versionId", ref.Version).
		Bind("id", link.ID))
	if err != nil {
		return nil, fmt.Errorf("updating link %s: %w", link.ID, err)
	}
	if n == 0 {
		return nil, nil
	}
	return t.mustGetLink(ctx, link.ID)
}

func (t *Tx) UpdateDigest(ctx context.Context, ref dms.Reference, digest []byte) error {
	n, err := t.exec(ctx, statement.Of(updateDigest).
		BindBytes("digest", digest).
		Bind("documentId", ref.ID).
		Bind("versionId", ref.Version))
	if err != nil {
		return fmt.Errorf("updating digest of %s: %w", ref, err)
	}
	if n == 0 {
		return &dms.ReferenceError{Text: ref.String()}
	}
	return nil
}

// GetOrCreateFolder resolves path, creating missing workspaces outermost
// first when createMissing is set. Labelled (published) workspaces are never
// created.
func (t *Tx) GetOrCreateFolder(ctx context.Context, path repopath.Path, createMissing bool) (*dms.Folder, error) {
	folder, err := t.GetFolder(ctx, path)
	if err != nil || folder != nil || !createMissing || path.IsEmpty() {
		return folder, err
	}
	part := path.Part()
	if part.IsID() || !part.Version().IsNone() {
		return nil, nil
	}
	parent, err := t.GetOrCreateFolder(ctx, path.Parent(), createMissing)
	if err != nil || parent == nil {
		return nil, err
	}
	return t.CreateFolder(ctx, parent, part.Name(), dms.StateOpen, nil)
}
