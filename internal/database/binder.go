package database

import (
	"fmt"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// pathBinding binds a path to the placeholders nameQuery generated for it.
// It visits names in the order the compiled criteria list them.
type pathBinding struct {
	path repopath.Path
}

func bindPath(p repopath.Path) pathBinding { return pathBinding{path: p} }

func (p pathBinding) BindTo(name string, b *statement.Bindings) error {
	path := p.path
	if path.IsEmpty() {
		return b.Set(name, id.Root)
	}
	part, parent := path.Part(), path.Parent()

	if isAnchor(path) {
		if err := b.Set(name, part.ID()); err != nil {
			return err
		}
		if pinsVersion(path) {
			return b.Set(name+".version", part.Version().ID())
		}
		return nil
	}

	if !part.IsID() {
		if err := b.Set(name, part.EscapedName()); err != nil {
			return err
		}
	}

	parentName := "parent." + name
	var err error
	switch {
	case parent.IsEmpty():
		err = b.Set(parentName, id.Root)
	case parent.Part().IsID():
		err = b.Set(parentName, parent.Part().ID())
	default:
		err = b.Composite(parentName, bindPath(parent))
	}
	if err != nil {
		return err
	}

	if part.IsID() {
		if err := b.Set(name, part.ID()); err != nil {
			return err
		}
	}
	v, err := versionValue(part.Version())
	if err != nil {
		return err
	}
	return b.Set(name+".version", v)
}

func versionValue(v repopath.Version) (any, error) {
	switch v.Kind() {
	case repopath.VersionNone:
		return "", nil
	case repopath.VersionNamed:
		return v.Escaped(), nil
	case repopath.VersionByID:
		return v.ID(), nil
	default:
		return nil, fmt.Errorf("%w: version pattern %q in a point lookup", dms.ErrInvalidPath, v.Name())
	}
}

var _ statement.Composite = pathBinding{}
