// Package schema maps logical entity fields onto the physical tables and
// views of the repository database, synthesizing one table alias per
// ancestor level.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownField is returned for a field that is not part of a view. It
// indicates a defect in the query compiler, not bad user input.
var ErrUnknownField = errors.New("unknown field")

// View identifies the relation a query selects from.
type View int

const (
	Node View = iota
	Folder
	Link
	// LinkHistory is Link joined with every version of the linked document.
	LinkHistory
	Document
)

var tables = map[View]string{
	Node:        "NODES",
	Folder:      "VIEW_FOLDERS",
	Link:        "VIEW_LINKS",
	LinkHistory: "VIEW_LINK_VERSIONS",
	Document:    "VIEW_DOCUMENTS",
}

var nodeColumns = map[string]string{
	"id":       "ID",
	"version":  "VERSION",
	"parentId": "PARENT_ID",
	"name":     "NAME",
	"deleted":  "DELETED",
	"type":     "TYPE",
}

var folderColumns = extend(nodeColumns, map[string]string{
	"state": "STATE",
})

var linkColumns = extend(nodeColumns, map[string]string{
	"reference.id":      "DOCUMENT_ID",
	"reference.version": "VERSION_ID",
	"mediaType":         "MEDIA_TYPE",
	"digest":            "DIGEST",
	"length":            "LENGTH",
	"current":           "IS_CURRENT",
})

var documentColumns = map[string]string{
	"reference.id":      "DOCUMENT_ID",
	"reference.version": "VERSION_ID",
	"mediaType":         "MEDIA_TYPE",
	"digest":            "DIGEST",
	"length":            "LENGTH",
	"latest":            "IS_LATEST",
}

var columns = map[View]map[string]string{
	Node:        nodeColumns,
	Folder:      folderColumns,
	Link:        linkColumns,
	LinkHistory: linkColumns,
	Document:    documentColumns,
}

func extend(base, more map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(more))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range more {
		out[k] = v
	}
	return out
}

func (v View) String() string { return tables[v] }

// Table returns the relation name for v.
func (v View) Table() string { return tables[v] }

// Formatter resolves qualified fields for one query against v. Each leading
// "parent" segment moves one alias up: T0 is the row itself, Tn its nth
// ancestor folder. A Formatter remembers the deepest alias it handed out so
// From can emit exactly the joins the query needs.
type Formatter struct {
	view  View
	depth int
}

// NewFormatter returns a formatter for v.
func NewFormatter(v View) *Formatter {
	return &Formatter{view: v}
}

func (f *Formatter) View() View { return f.view }

// Depth is the highest alias index referenced so far.
func (f *Formatter) Depth() int { return f.depth }

// Require ensures aliases up to T<depth> are joined.
func (f *Formatter) Require(depth int) {
	if depth > f.depth {
		f.depth = depth
	}
}

// Column implements filter.Formatter.
func (f *Formatter) Column(field []string) (string, error) {
	depth := 0
	for len(field) > 1 && field[0] == "parent" {
		depth++
		field = field[1:]
	}
	name := strings.Join(field, ".")
	cols := columns[f.view]
	if depth > 0 {
		cols = folderColumns
	}
	col, ok := cols[name]
	if !ok {
		return "", fmt.Errorf("%w %q in %s", ErrUnknownField, name, f.view)
	}
	f.Require(depth)
	return fmt.Sprintf("%s.%s", Alias(depth), col), nil
}

// Alias returns the alias for depth.
func Alias(depth int) string {
	return fmt.Sprintf("T%d", depth)
}

// From renders the FROM clause: the view as T0 and one join per ancestor
// level.
func (f *Formatter) From() string {
	var b strings.Builder
	b.WriteString(f.view.Table())
	b.WriteString(" T0")
	for i := 1; i <= f.depth; i++ {
		fmt.Fprintf(&b, " INNER JOIN %s %s ON %s.PARENT_ID = %s.ID", Folder.Table(), Alias(i), Alias(i-1), Alias(i))
	}
	return b.String()
}
