package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/schema"
	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/filter"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// lookup prepares a point lookup of path for projection p. ok is false when
// the path is anchored to a node that does not exist.
func (t *Tx) lookup(ctx context.Context, p Projection, path repopath.Path) (statement.Statement, bool, error) {
	tmpl, err := lookupTemplate(p, path)
	if err != nil {
		return statement.Statement{}, false, err
	}
	stmt := statement.Of(tmpl).BindComposite("path", bindPath(path))
	if p.needsPath() {
		base, ok, err := t.s.basePath(ctx, t.tx, path)
		if err != nil || !ok {
			return statement.Statement{}, false, err
		}
		stmt = stmt.BindString("basePath", base.String())
	}
	return stmt, true, nil
}

// lookupOne runs a point lookup and returns its row, or the zero value when
// nothing matches.
func lookupOne[T any](ctx context.Context, t *Tx, p Projection, path repopath.Path, m statement.RowMapper[T]) (T, error) {
	var zero T
	stmt, ok, err := t.lookup(ctx, p, path)
	if err != nil || !ok {
		return zero, err
	}
	v, _, err := queryFirst(ctx, t, stmt, m)
	if err != nil {
		return zero, fmt.Errorf("looking up %s %q: %w", p, path, err)
	}
	return v, nil
}

func searchAll[T any](ctx context.Context, t *Tx, p Projection, path repopath.Path, opts dms.SearchOptions, m statement.RowMapper[T]) ([]T, error) {
	tmpl, err := searchTemplate(p, path, opts)
	if err != nil {
		return nil, err
	}
	stmt := statement.Of(tmpl)
	if p.needsPath() {
		base, ok, err := t.s.basePath(ctx, t.tx, path)
		if err != nil || !ok {
			return nil, err
		}
		stmt = stmt.BindString("basePath", base.String())
	}
	out, err := queryAll(ctx, t, stmt, m)
	if err != nil {
		return nil, fmt.Errorf("searching %s %q: %w", p, path, err)
	}
	return out, nil
}

// resolveID returns the id of the node at path. Root and anchor paths need
// no query unless verify is set.
func (t *Tx) resolveID(ctx context.Context, path repopath.Path, verify bool) (id.ID, bool, error) {
	if path.IsEmpty() {
		return id.Root, true, nil
	}
	if isAnchor(path) && !verify {
		return path.Part().ID(), true, nil
	}
	stmt, ok, err := t.lookup(ctx, ProjectID, path)
	if err != nil || !ok {
		return id.Root, false, err
	}
	v, found, err := queryFirst(ctx, t, stmt, mapID)
	if err != nil {
		return id.Root, false, fmt.Errorf("resolving %q: %w", path, err)
	}
	return v, found, nil
}

func (t *Tx) GetInfo(ctx context.Context, path repopath.Path) (*dms.Info, error) {
	if path.IsEmpty() {
		return &dms.Info{ID: id.Root, ParentID: id.Root, Type: dms.TypeWorkspace}, nil
	}
	return lookupOne(ctx, t, ProjectInfo, path, mapInfo)
}

func (t *Tx) GetInfos(ctx context.Context, path repopath.Path) ([]*dms.Info, error) {
	return searchAll(ctx, t, ProjectInfo, path, dms.SearchOptions{}, mapInfo)
}

func (t *Tx) GetFolder(ctx context.Context, path repopath.Path) (*dms.Folder, error) {
	return lookupOne(ctx, t, ProjectFolder, path, mapFolder)
}

func (t *Tx) GetFolders(ctx context.Context, path repopath.Path, opts dms.SearchOptions) ([]*dms.Folder, error) {
	return searchAll(ctx, t, ProjectFolder, path, opts, mapFolder)
}

func (t *Tx) GetDocumentLink(ctx context.Context, path repopath.Path) (*dms.DocumentLink, error) {
	return lookupOne(ctx, t, ProjectLink, path, mapLink)
}

func (t *Tx) GetDocumentLinks(ctx context.Context, path repopath.Path, opts dms.SearchOptions) ([]*dms.DocumentLink, error) {
	return searchAll(ctx, t, ProjectLink, path, opts, mapLink)
}

// documentQuery compiles a document fetch. An empty criteria expression
// selects every version of every document.
func documentQuery(criteria filter.Expr) (statement.Template, error) {
	f := schema.NewFormatter(schema.Document)
	sql, err := criteria.Compile(f)
	if err != nil {
		return statement.Template{}, fmt.Errorf("compiling document query: %w", err)
	}
	return schema.FetchDocument(f, sql), nil
}

func documentSearch(history bool) (statement.Statement, error) {
	criteria := filter.Unbounded()
	if !history {
		criteria = filter.From("latest", filter.Equals(true))
	}
	tmpl, err := documentQuery(criteria)
	if err != nil {
		return statement.Statement{}, err
	}
	return statement.Of(tmpl), nil
}

func (t *Tx) GetDocument(ctx context.Context, ref dms.Reference) (*dms.Document, error) {
	criteria := filter.From("reference.id", filter.Equals(filter.Param("documentId")))
	if ref.Version.IsRoot() {
		criteria = criteria.Intersect(filter.From("latest", filter.Equals(true)))
	} else {
		criteria = criteria.Intersect(filter.From("reference.version", filter.Equals(filter.Param("versionId"))))
	}
	tmpl, err := documentQuery(criteria)
	if err != nil {
		return nil, err
	}
	stmt := statement.Of(tmpl).Bind("documentId", ref.ID)
	if !ref.Version.IsRoot() {
		stmt = stmt.Bind("versionId", ref.Version)
	}
	doc, _, err := queryFirst(ctx, t, stmt, mapDocument)
	if err != nil {
		return nil, fmt.Errorf("fetching document %s: %w", ref, err)
	}
	return doc, nil
}

func (t *Tx) GetDocumentHistory(ctx context.Context, docID id.ID) ([]*dms.Document, error) {
	tmpl, err := documentQuery(filter.From("reference.id", filter.Equals(filter.Param("documentId"))))
	if err != nil {
		return nil, err
	}
	docs, err := queryAll(ctx, t, statement.Of(tmpl).Bind("documentId", docID), mapDocument)
	if err != nil {
		return nil, fmt.Errorf("fetching history of %s: %w", docID, err)
	}
	return docs, nil
}

func (t *Tx) GetPathTo(ctx context.Context, nodeID id.ID) (repopath.Path, bool, error) {
	return t.s.pathTo(ctx, t.tx, nodeID)
}

// pathTo walks the ancestors of a node up to the root.
func (s *SQLiteDatabase) pathTo(ctx context.Context, q statement.Queryer, nodeID id.ID) (repopath.Path, bool, error) {
	if nodeID.IsRoot() {
		return repopath.Root, true, nil
	}
	rows, err := statement.Query(ctx, statement.Of(fetchPathToID).Bind("id", nodeID), q, func(sc statement.Scanner) (string, error) {
		var name, version string
		if err := sc.Scan(&name, &version); err != nil {
			return "", err
		}
		if version != "" {
			name += "@" + version
		}
		return name, nil
	})
	s.metrics.ObserveStatement("query", err)
	if err != nil {
		return repopath.Root, false, fmt.Errorf("fetching path to %s: %w", nodeID, err)
	}
	segments, err := rows.Collect()
	if err != nil {
		return repopath.Root, false, fmt.Errorf("fetching path to %s: %w", nodeID, err)
	}
	if len(segments) == 0 {
		return repopath.Root, false, nil
	}
	path, err := repopath.Parse(strings.Join(segments, "/"))
	if err != nil {
		return repopath.Root, false, fmt.Errorf("reading path to %s: %w", nodeID, err)
	}
	return path, true, nil
}
