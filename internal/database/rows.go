package database

import (
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// timestamp scans a TIMESTAMP column whether the driver hands back a parsed
// time or the stored text.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func mapID(s statement.Scanner) (id.ID, error) {
	info, err := mapInfo(s)
	if err != nil {
		return id.Root, err
	}
	return info.ID, nil
}

func mapInfo(s statement.Scanner) (*dms.Info, error) {
	var info dms.Info
	var nodeType string
	if err := s.Scan(&info.ID, &info.ParentID, &info.Name, &info.Version, &nodeType, &info.Deleted); err != nil {
		return nil, err
	}
	info.Type = dms.NodeType(nodeType)
	return &info, nil
}

func mapFolder(s statement.Scanner) (*dms.Folder, error) {
	var f dms.Folder
	var state, metadata, path string
	if err := s.Scan(&f.ID, &f.ParentID, new(string), &f.Version, &state, &metadata, &f.Deleted, &path); err != nil {
		return nil, err
	}
	f.State = dms.State(state)
	var err error
	if f.Metadata, err = dms.DecodeMetadata(metadata); err != nil {
		return nil, err
	}
	if f.Path, err = repopath.Parse(path); err != nil {
		return nil, fmt.Errorf("reading folder path: %w", err)
	}
	return &f, nil
}

func mapLink(s statement.Scanner) (*dms.DocumentLink, error) {
	var l dms.DocumentLink
	var metadata, path string
	err := s.Scan(&l.ID, &l.ParentID, new(string), &l.Version,
		&l.Reference.ID, &l.Reference.Version, &l.MediaType, &l.Length, &l.Digest,
		&metadata, &l.Deleted, &l.Current, &path)
	if err != nil {
		return nil, err
	}
	if l.Metadata, err = dms.DecodeMetadata(metadata); err != nil {
		return nil, err
	}
	if l.Path, err = repopath.Parse(path); err != nil {
		return nil, fmt.Errorf("reading link path: %w", err)
	}
	return &l, nil
}

func mapDocument(s statement.Scanner) (*dms.Document, error) {
	var d dms.Document
	var metadata string
	var created timestamp
	err := s.Scan(&d.ID, &d.Version, &d.MediaType, &d.Length, &d.Digest, &metadata, &d.Latest, &created)
	if err != nil {
		return nil, err
	}
	if d.Metadata, err = dms.DecodeMetadata(metadata); err != nil {
		return nil, err
	}
	d.Created = created.Time
	return &d, nil
}

type child struct {
	id       id.ID
	nodeType dms.NodeType
}

func mapChild(s statement.Scanner) (child, error) {
	var c child
	var nodeType string
	if err := s.Scan(&c.id, &nodeType); err != nil {
		return c, err
	}
	c.nodeType = dms.NodeType(nodeType)
	return c, nil
}
