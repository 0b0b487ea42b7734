package database

import (
	"fmt"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/schema"
	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/filter"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// Projection selects what a lookup returns, and with it the view queried
// and the row mapper applied.
type Projection int

const (
	ProjectID Projection = iota
	ProjectInfo
	ProjectFolder
	ProjectLink
	ProjectDocument
)

func (p Projection) String() string {
	switch p {
	case ProjectID:
		return "id"
	case ProjectInfo:
		return "info"
	case ProjectFolder:
		return "folder"
	case ProjectLink:
		return "link"
	case ProjectDocument:
		return "document"
	default:
		return fmt.Sprintf("projection(%d)", int(p))
	}
}

// needsPath reports whether rows carry a PATH column, which requires the
// materialized path of the anchor as basePath.
func (p Projection) needsPath() bool {
	return p == ProjectFolder || p == ProjectLink
}

// view picks the relation a lookup of path with projection p reads.
func (p Projection) view(path repopath.Path, allVersions bool) (schema.View, error) {
	history := pinsVersion(path) || allVersions
	switch p {
	case ProjectID, ProjectInfo:
		switch {
		case pinsVersion(path):
			return schema.LinkHistory, nil
		case isDocumentID(path):
			return schema.Link, nil
		default:
			return schema.Node, nil
		}
	case ProjectFolder:
		if pinsVersion(path) || isDocumentID(path) {
			return 0, fmt.Errorf("%w: %q does not name a workspace", dms.ErrInvalidPath, path)
		}
		return schema.Folder, nil
	case ProjectLink:
		if history {
			return schema.LinkHistory, nil
		}
		return schema.Link, nil
	default:
		return 0, fmt.Errorf("no path lookup for %s projection", p)
	}
}

// lookupTemplate compiles a point lookup of path. The statement binds the
// path under "path" and, for projections with a PATH column, "basePath".
func lookupTemplate(p Projection, path repopath.Path) (statement.Template, error) {
	if err := checkShape(path); err != nil {
		return statement.Template{}, err
	}
	view, err := p.view(path, false)
	if err != nil {
		return statement.Template{}, err
	}
	f := schema.NewFormatter(view)
	criteria, err := nameQuery("path", path).Compile(f)
	if err != nil {
		return statement.Template{}, fmt.Errorf("compiling %q: %w", path, err)
	}
	return selectTemplate(p, f, path, criteria), nil
}

// searchTemplate compiles a search of a path with wildcards. Its only
// placeholder is basePath, for projections that need it.
func searchTemplate(p Projection, path repopath.Path, opts dms.SearchOptions) (statement.Template, error) {
	if err := checkShape(path); err != nil {
		return statement.Template{}, err
	}
	view, err := p.view(path, opts.AllVersions)
	if err != nil {
		return statement.Template{}, err
	}
	f := schema.NewFormatter(view)
	criteria, err := searchQuery(path, !opts.IncludeDeleted).Compile(f)
	if err != nil {
		return statement.Template{}, fmt.Errorf("compiling %q: %w", path, err)
	}
	return selectTemplate(p, f, path, criteria), nil
}

func selectTemplate(p Projection, f *schema.Formatter, path repopath.Path, criteria filter.SQL) statement.Template {
	switch p {
	case ProjectFolder:
		return schema.FetchFolder(f, addressExpression(f, path, false), criteria)
	case ProjectLink:
		return schema.FetchLink(f, addressExpression(f, path, true), criteria)
	default:
		return schema.FetchInfo(f, criteria)
	}
}
