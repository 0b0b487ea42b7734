package schema

import (
	"slices"
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/filter"
)

const (
	folderColumnList = "T0.ID, T0.PARENT_ID, T0.NAME, T0.VERSION, T0.STATE, T0.METADATA, T0.DELETED"
	linkColumnList   = "T0.ID, T0.PARENT_ID, T0.NAME, T0.VERSION, T0.DOCUMENT_ID, T0.VERSION_ID, T0.MEDIA_TYPE, T0.LENGTH, T0.DIGEST, T0.METADATA, T0.DELETED, T0.IS_CURRENT"
	infoColumnList   = "T0.ID, T0.PARENT_ID, T0.NAME, T0.VERSION, T0.TYPE, T0.DELETED"
	docColumnList    = "T0.DOCUMENT_ID, T0.VERSION_ID, T0.MEDIA_TYPE, T0.LENGTH, T0.DIGEST, T0.METADATA, T0.IS_LATEST, T0.CREATED"
)

// FetchFolder selects folder rows with a computed PATH column, ordered by
// path.
func FetchFolder(f *Formatter, address, criteria filter.SQL) statement.Template {
	return selectWithPath(folderColumnList, f, address, criteria)
}

// FetchLink selects document link rows with a computed PATH column.
func FetchLink(f *Formatter, address, criteria filter.SQL) statement.Template {
	return selectWithPath(linkColumnList, f, address, criteria)
}

// FetchInfo selects the type-dispatch projection of nodes.
func FetchInfo(f *Formatter, criteria filter.SQL) statement.Template {
	return selectRows(infoColumnList, f, criteria, "")
}

// FetchDocument selects document versions, oldest first.
func FetchDocument(f *Formatter, criteria filter.SQL) statement.Template {
	return selectRows(docColumnList, f, criteria, " ORDER BY T0.CREATED, T0.VERSION_ID")
}

func selectWithPath(cols string, f *Formatter, address, criteria filter.SQL) statement.Template {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(", ")
	b.WriteString(address.Text)
	b.WriteString(" AS PATH FROM ")
	b.WriteString(f.From())
	where(&b, criteria)
	b.WriteString(" ORDER BY PATH")
	return statement.New(b.String(), slices.Concat(address.Params, criteria.Params)...)
}

func selectRows(cols string, f *Formatter, criteria filter.SQL, suffix string) statement.Template {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(f.From())
	where(&b, criteria)
	b.WriteString(suffix)
	return statement.New(b.String(), slices.Clone(criteria.Params)...)
}

func where(b *strings.Builder, criteria filter.SQL) {
	if criteria.Text != "" {
		b.WriteString(" WHERE ")
		b.WriteString(criteria.Text)
	}
}
