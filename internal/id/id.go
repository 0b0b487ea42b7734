// Package id provides the 128-bit identifier used for nodes, documents and
// document versions.
package id

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier. The zero value is Root.
type ID uuid.UUID

// Root identifies the namespace root.
var Root ID

// New returns a random identifier.
func New() ID {
	return ID(uuid.New())
}

// Parse parses the canonical grouped-hex text form.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Root, fmt.Errorf("parsing id %q: %w", s, err)
	}
	return ID(u), nil
}

// MustParse is Parse for constants in tests and fixed schema rows.
func MustParse(s string) ID {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromBytes builds an identifier from its 16-byte binary form.
func FromBytes(b []byte) (ID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return Root, fmt.Errorf("id from bytes: %w", err)
	}
	return ID(u), nil
}

func (i ID) String() string { return uuid.UUID(i).String() }

// IsRoot reports whether i is the all-zero root identifier.
func (i ID) IsRoot() bool { return i == Root }

// Value stores identifiers as canonical text.
func (i ID) Value() (driver.Value, error) {
	return i.String(), nil
}

// Scan accepts the text form, or 16 raw bytes.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*i = parsed
	case []byte:
		if len(v) == 16 {
			parsed, err := FromBytes(v)
			if err != nil {
				return err
			}
			*i = parsed
			return nil
		}
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*i = parsed
	case nil:
		*i = Root
	default:
		return fmt.Errorf("cannot scan %T into id", src)
	}
	return nil
}
