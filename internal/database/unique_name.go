package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/filter"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// postfixAlphabet orders the characters a generated postfix may use.
const postfixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func (t *Tx) GenerateUniqueName(ctx context.Context, folderID id.ID, template string) (string, error) {
	escaped := repopath.Escape(template)
	base, ext := splitExtension(escaped)
	stmt := statement.Of(fetchLastNameLike).
		Bind("parentId", folderID).
		BindString("pattern", filter.LikeLiteral(base)+"%"+filter.LikeLiteral(ext))
	last, _, err := queryFirst(ctx, t, stmt, func(s statement.Scanner) (string, error) {
		var v sql.NullString
		err := s.Scan(&v)
		return v.String, err
	})
	if err != nil {
		return "", fmt.Errorf("generating name from %q: %w", template, err)
	}
	if last == "" {
		return template, nil
	}
	name, err := repopath.Unescape(nextName(base, ext, last))
	if err != nil {
		return "", fmt.Errorf("generating name from %q: %w", template, err)
	}
	return name, nil
}

// splitExtension splits name at its last '.', keeping the dot with the
// extension. A leading dot does not start an extension.
func splitExtension(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// nextName derives a name that sorts after last, the greatest existing name
// of the form base + postfix + ext. The postfix is "_1" for the first clash;
// after that its last character is bumped through postfixAlphabet, and a
// character that cannot be bumped gets a '0' appended.
func nextName(base, ext, last string) string {
	end := len(last)
	if ext != "" {
		if i := strings.LastIndex(last, ext); i >= len(base) {
			end = i
		}
	}
	postfix := ""
	if end > len(base) {
		postfix = last[len(base):end]
	}
	if postfix == "" {
		return base + "_1" + ext
	}
	tail := postfix[len(postfix)-1]
	i := strings.IndexByte(postfixAlphabet, tail)
	if i < 0 || i == len(postfixAlphabet)-1 {
		return base + postfix + "0" + ext
	}
	return base + postfix[:len(postfix)-1] + string(postfixAlphabet[i+1]) + ext
}
