package database

import (
	"context"
	"fmt"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// edge is one parent/child pair of a subtree snapshot.
type edge struct {
	parent id.ID
	child  child
}

// subtree lists every descendant of root, parents before children. It is
// read in full before anything is copied, so a copy placed inside its own
// source is not copied again.
func (t *Tx) subtree(ctx context.Context, root id.ID) ([]edge, error) {
	var edges []edge
	queue := []id.ID{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		children, err := queryAll(ctx, t, statement.Of(fetchChildren).Bind("parentId", parent), mapChild)
		if err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", parent, err)
		}
		for _, c := range children {
			edges = append(edges, edge{parent: parent, child: c})
			if c.nodeType == dms.TypeWorkspace {
				queue = append(queue, c.id)
			}
		}
	}
	return edges, nil
}

// copyTyped copies the folder or link row of src to dst. Published links
// are fixed to their current version.
func (t *Tx) copyTyped(ctx context.Context, dst, src id.ID, nodeType dms.NodeType, publish bool) error {
	tmpl := copyFolder
	if nodeType == dms.TypeDocumentLink {
		tmpl = copyLink
		if publish {
			tmpl = publishLink
		}
	}
	_, err := t.exec(ctx, statement.Of(tmpl).Bind("id", dst).Bind("sourceId", src))
	if err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}

// copyDescendants recreates a snapshot of the subtree of src under dst.
func (t *Tx) copyDescendants(ctx context.Context, edges []edge, src, dst id.ID, publish bool) error {
	copies := map[id.ID]id.ID{src: dst}
	for _, e := range edges {
		newID := t.s.ids.New()
		copies[e.child.id] = newID
		_, err := t.exec(ctx, statement.Of(copyNode).
			Bind("id", newID).
			Bind("parentId", copies[e.parent]).
			Bind("created", t.now()).
			Bind("sourceId", e.child.id))
		if err != nil {
			return fmt.Errorf("copying node %s: %w", e.child.id, err)
		}
		if err := t.copyTyped(ctx, newID, e.child.id, e.child.nodeType, publish); err != nil {
			return err
		}
	}
	return nil
}

// destination resolves the parent of a copy target, creating it when asked.
func (t *Tx) destination(ctx context.Context, dst repopath.Path, createParent bool) (*dms.Folder, string, error) {
	if dst.IsEmpty() || dst.Part().IsID() || !dst.Part().Version().IsNone() {
		return nil, "", &dms.ObjectNameError{Path: dst}
	}
	parent, err := t.GetOrCreateFolder(ctx, dst.Parent(), createParent)
	if err != nil {
		return nil, "", err
	}
	if parent == nil {
		return nil, "", &dms.WorkspaceError{Path: dst.Parent()}
	}
	return parent, dst.Part().Name(), nil
}

func (t *Tx) CopyFolder(ctx context.Context, src, dst repopath.Path, createParent bool) (*dms.Folder, error) {
	if src.IsEmpty() {
		return nil, &dms.WorkspaceError{Path: src}
	}
	source, err := t.GetFolder(ctx, src)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &dms.WorkspaceError{Path: src}
	}
	parent, name, err := t.destination(ctx, dst, createParent)
	if err != nil {
		return nil, err
	}
	edges, err := t.subtree(ctx, source.ID)
	if err != nil {
		return nil, err
	}

	newID := t.s.ids.New()
	if err := t.insertNode(ctx, newID, parent.ID, name, dms.TypeWorkspace); err != nil {
		return nil, err
	}
	if err := t.copyTyped(ctx, newID, source.ID, dms.TypeWorkspace, false); err != nil {
		return nil, err
	}
	if err := t.copyDescendants(ctx, edges, source.ID, newID, false); err != nil {
		return nil, err
	}
	t.s.logger.Debug("folder copied", "from", src, "to", dst, "nodes", len(edges)+1)
	return t.mustGetFolder(ctx, newID)
}

func (t *Tx) CopyDocumentLink(ctx context.Context, src, dst repopath.Path, createParent bool) (*dms.DocumentLink, error) {
	source, err := t.GetDocumentLink(ctx, src)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &dms.ObjectNameError{Path: src}
	}
	parent, name, err := t.destination(ctx, dst, createParent)
	if err != nil {
		return nil, err
	}
	newID := t.s.ids.New()
	if err := t.insertNode(ctx, newID, parent.ID, name, dms.TypeDocumentLink); err != nil {
		return nil, err
	}
	if err := t.copyTyped(ctx, newID, source.ID, dms.TypeDocumentLink, false); err != nil {
		return nil, err
	}
	return t.mustGetLink(ctx, newID)
}

func (t *Tx) Publish(ctx context.Context, nodeID id.ID, label string) (id.ID, error) {
	info, err := t.GetInfo(ctx, anchored(nodeID))
	if err != nil {
		return id.Root, err
	}
	if info == nil || nodeID.IsRoot() {
		return id.Root, &dms.ObjectNameError{Path: anchored(nodeID)}
	}
	edges, err := t.subtree(ctx, nodeID)
	if err != nil {
		return id.Root, err
	}

	newID := t.s.ids.New()
	_, err = t.exec(ctx, statement.Of(publishNode).
		Bind("id", newID).
		BindString("version", repopath.Escape(label)).
		Bind("created", t.now()).
		Bind("sourceId", nodeID))
	if err != nil {
		return id.Root, fmt.Errorf("publishing %s as %q: %w", nodeID, label, conflict(err))
	}
	if err := t.copyTyped(ctx, newID, nodeID, info.Type, true); err != nil {
		return id.Root, err
	}
	if err := t.copyDescendants(ctx, edges, nodeID, newID, true); err != nil {
		return id.Root, err
	}
	t.s.logger.Info("published", "node", nodeID, "label", label, "copy", newID)
	return newID, nil
}

func (t *Tx) DeleteObject(ctx context.Context, path repopath.Path) ([]dms.Object, error) {
	return t.markDeleted(ctx, path, true)
}

func (t *Tx) UndeleteObject(ctx context.Context, path repopath.Path) ([]dms.Object, error) {
	return t.markDeleted(ctx, path, false)
}

// markDeleted flips the deleted flag of the object at path. The containing
// workspace must be open. An object already in the requested state is left
// alone and nothing is returned.
func (t *Tx) markDeleted(ctx context.Context, path repopath.Path, deleted bool) ([]dms.Object, error) {
	if path.IsEmpty() {
		return nil, &dms.ObjectNameError{Path: path}
	}
	info, err := t.GetInfo(ctx, path)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, &dms.ObjectNameError{Path: path}
	}
	parent, err := t.GetFolder(ctx, anchored(info.ParentID))
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, &dms.WorkspaceError{Path: path.Parent()}
	}
	if parent.State != dms.StateOpen {
		return nil, &dms.WorkspaceStateError{Path: parent.Path, State: parent.State}
	}
	if info.Deleted == deleted {
		return nil, nil
	}
	if _, err := t.exec(ctx, statement.Of(setDeleted).BindBool("deleted", deleted).Bind("id", info.ID)); err != nil {
		return nil, fmt.Errorf("marking %q deleted=%t: %w", path, deleted, err)
	}

	var obj dms.Object
	switch info.Type {
	case dms.TypeWorkspace:
		obj, err = t.mustGetFolder(ctx, info.ID)
	default:
		obj, err = t.mustGetLink(ctx, info.ID)
	}
	if err != nil {
		return nil, err
	}
	return []dms.Object{obj}, nil
}

func (t *Tx) LockVersions(ctx context.Context, folderID id.ID) error {
	return t.setFixed(ctx, folderID, true)
}

func (t *Tx) UnlockVersions(ctx context.Context, folderID id.ID) error {
	return t.setFixed(ctx, folderID, false)
}

func (t *Tx) setFixed(ctx context.Context, folderID id.ID, fixed bool) error {
	n, err := t.exec(ctx, statement.Of(setFixed).Bind("id", folderID).BindBool("fixed", fixed))
	if err != nil {
		return fmt.Errorf("setting fixed=%t under %s: %w", fixed, folderID, err)
	}
	t.s.logger.Debug("link versions fixed", "folder", folderID, "fixed", fixed, "links", n)
	return nil
}
