package dms

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Metadata is a free-form JSON object attached to folders and documents.
type Metadata map[string]any

// Merge returns a copy of m with the keys of update applied. A nil value in
// update removes the key.
func (m Metadata) Merge(update Metadata) Metadata {
	out := make(Metadata, len(m)+len(update))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range update {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// String returns the first value under key when it is a string.
func (m Metadata) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// EncodeMetadata renders m as a JSON object with sorted keys. Nil encodes as
// the empty object.
func EncodeMetadata(m Metadata) string {
	if m == nil {
		return "{}"
	}
	return oj.JSON(map[string]any(m), &oj.Options{Sort: true})
}

// DecodeMetadata parses a JSON object stored by EncodeMetadata.
func DecodeMetadata(text string) (Metadata, error) {
	if text == "" {
		return Metadata{}, nil
	}
	v, err := oj.ParseString(text)
	if err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parsing metadata: expected object, got %T", v)
	}
	return Metadata(obj), nil
}

// MetadataFilter selects objects whose metadata matches a JSONPath
// expression. The zero value matches everything.
type MetadataFilter struct {
	expr jp.Expr
}

// ParseMetadataFilter compiles a JSONPath expression evaluated against the
// metadata object, such as `$.author` or `$.tags[?(@ == 'draft')]`. The
// empty string matches everything.
func ParseMetadataFilter(expr string) (MetadataFilter, error) {
	if expr == "" {
		return MetadataFilter{}, nil
	}
	x, err := jp.ParseString(expr)
	if err != nil {
		return MetadataFilter{}, &ValidationError{Err: fmt.Errorf("invalid jsonpath %q: %w", expr, err)}
	}
	return MetadataFilter{expr: x}, nil
}

// Match reports whether the expression selects at least one value from m.
func (f MetadataFilter) Match(m Metadata) bool {
	if f.expr == nil {
		return true
	}
	return len(f.expr.Get(map[string]any(m))) > 0
}
