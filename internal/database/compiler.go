package database

import (
	"fmt"
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/schema"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/filter"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// checkShape rejects paths the compiler cannot express: an id element must
// either lead the path (anchoring it to a node) or be the last element
// (naming a document within a folder), and only the last element may pin a
// document version.
func checkShape(path repopath.Path) error {
	last := path.Size() - 1
	for i, e := range path.Elements() {
		if e.IsID() && i > 0 && i < last {
			return fmt.Errorf("%w: id element %s inside %q", dms.ErrInvalidPath, e, path)
		}
		if e.Version().Kind() == repopath.VersionByID && i < last {
			return fmt.Errorf("%w: version id on workspace %s in %q", dms.ErrInvalidPath, e, path)
		}
	}
	return nil
}

// isAnchor reports whether the last element of path is a leading id.
func isAnchor(path repopath.Path) bool {
	return path.Size() == 1 && path.Part().IsID()
}

// isDocumentID reports whether the last element of path names a document by
// id within a folder.
func isDocumentID(path repopath.Path) bool {
	return path.Size() > 1 && path.Part().IsID()
}

func pinsVersion(path repopath.Path) bool {
	return path.Part().Version().Kind() == repopath.VersionByID
}

func versionField(v repopath.Version) string {
	if v.Kind() == repopath.VersionByID {
		return "reference.version"
	}
	return "version"
}

// nameQuery builds the point-lookup constraints for path with placeholders
// named after param: param and param.version for the row, parent.param and
// so on for each ancestor level. pathBinding binds the same names in the
// same order.
func nameQuery(param string, path repopath.Path) filter.Expr {
	eq := func(name string) filter.Range { return filter.Equals(filter.Param(name)) }

	if path.IsEmpty() {
		return filter.From("id", eq(param))
	}
	part, parent := path.Part(), path.Parent()

	if isAnchor(path) {
		q := filter.From("id", eq(param))
		if pinsVersion(path) {
			q = q.Intersect(filter.From("reference.version", eq(param+".version")))
		}
		return q
	}

	var q filter.Expr
	if part.IsID() {
		q = filter.From("reference.id", eq(param))
	} else {
		q = filter.From("name", eq(param))
	}
	q = q.Intersect(filter.From(versionField(part.Version()), eq(param+".version")))

	parentParam := "parent." + param
	if parent.IsEmpty() || parent.Part().IsID() {
		// Skip the join: the parent id is bound directly.
		return q.Intersect(filter.From("parentId", eq(parentParam)))
	}
	return q.Intersect(filter.FromExpr("parent", nameQuery(parentParam, parent)))
}

// searchQuery builds literal constraints for a path that may contain
// wildcard names and versions. Deleted rows are excluded at every level
// when hideDeleted is set.
func searchQuery(path repopath.Path, hideDeleted bool) filter.Expr {
	if path.IsEmpty() {
		return filter.Unbounded()
	}
	part, parent := path.Part(), path.Parent()

	var q filter.Expr
	switch {
	case isAnchor(path):
		q = filter.From("id", filter.Equals(part.ID()))
		if pinsVersion(path) {
			q = q.Intersect(versionQuery(part.Version()))
		}
	case part.IsID():
		q = filter.From("reference.id", filter.Equals(part.ID())).Intersect(versionQuery(part.Version()))
	default:
		q = nameConstraint(part).Intersect(versionQuery(part.Version()))
	}

	switch {
	case isAnchor(path):
	case parent.IsEmpty():
		// The root is its own parent.
		q = q.Intersect(
			filter.From("parentId", filter.Equals(id.Root)),
			filter.From("id", filter.NotEquals(id.Root)),
		)
	case parent.Part().IsID():
		q = q.Intersect(filter.From("parentId", filter.Equals(parent.Part().ID())))
		if parent.Part().ID().IsRoot() {
			q = q.Intersect(filter.From("id", filter.NotEquals(id.Root)))
		}
	default:
		q = q.Intersect(filter.FromExpr("parent", searchQuery(parent, hideDeleted)))
	}

	if hideDeleted {
		q = q.Intersect(filter.From("deleted", filter.Equals(false)))
	}
	return q
}

func nameConstraint(e repopath.Element) filter.Expr {
	if strings.Contains(e.Name(), "*") {
		return filter.From("name", filter.Like(e.EscapedName()))
	}
	return filter.From("name", filter.Equals(e.EscapedName()))
}

// versionQuery constrains a row to a version selector. A bare '*' matches
// every version.
func versionQuery(v repopath.Version) filter.Expr {
	switch v.Kind() {
	case repopath.VersionNamed:
		return filter.From("version", filter.Equals(v.Escaped()))
	case repopath.VersionByID:
		return filter.From("reference.version", filter.Equals(v.ID()))
	case repopath.VersionWildcard:
		if v.Name() == "*" {
			return filter.Unbounded()
		}
		return filter.From("version", filter.Like(v.Escaped()))
	default:
		return filter.From("version", filter.Equals(""))
	}
}

// addressExpression renders the PATH column: the base path (bound as
// basePath) followed by the name and version of each level below the
// path's anchor, outermost first. For links the row's own level shows a
// historical version as '@~<version id>'.
func addressExpression(f *schema.Formatter, path repopath.Path, link bool) filter.SQL {
	depth := path.AfterRootID().Size()
	var b strings.Builder
	b.WriteString("?")
	for i := depth - 1; i >= 0; i-- {
		alias := schema.Alias(i)
		suffix := fmt.Sprintf("CASE WHEN %[1]s.VERSION = '' THEN '' ELSE '@' || %[1]s.VERSION END", alias)
		if i == 0 && link {
			suffix = fmt.Sprintf("CASE WHEN %[1]s.IS_CURRENT THEN %[2]s ELSE '@~' || %[1]s.VERSION_ID END", alias, suffix)
		}
		fmt.Fprintf(&b, " || '/' || %s.NAME || %s", alias, suffix)
	}
	if depth > 0 {
		f.Require(depth - 1)
	}
	return filter.SQL{Text: b.String(), Params: []string{"basePath"}}
}
