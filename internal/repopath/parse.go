package repopath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// ErrInvalidPath is matched by every path syntax error.
var ErrInvalidPath = errors.New("invalid path")

// ParseError reports where a path failed to parse.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Input, e.Offset, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrInvalidPath }

// MustParse is Parse for literals.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse reads the text form produced by Path.String. Empty segments are
// ignored, so a leading or doubled '/' is tolerated.
func Parse(s string) (Path, error) {
	p := &parser{in: s}
	return p.path()
}

type parser struct {
	in  string
	pos int
}

func (p *parser) fail(reason string) error {
	return p.failAt(p.pos, reason)
}

// failAt reports an error at offset without moving the scan position.
func (p *parser) failAt(offset int, reason string) error {
	return &ParseError{Input: p.in, Offset: offset, Reason: reason}
}

// path := segment ('/' segment)*
func (p *parser) path() (Path, error) {
	result := Root
	for p.pos <= len(p.in) {
		start := p.pos
		seg, err := p.segment()
		if err != nil {
			return Root, err
		}
		if seg != "" {
			e, err := p.element(seg, start)
			if err != nil {
				return Root, err
			}
			result = result.Add(e)
		}
		p.pos++ // separator
	}
	return result, nil
}

// segment scans to the next unescaped '/', returning the raw escaped text.
func (p *parser) segment() (string, error) {
	start := p.pos
	for p.pos < len(p.in) {
		switch p.in[p.pos] {
		case '\\':
			if p.pos+1 >= len(p.in) {
				return "", p.fail("unexpected end of input after escape")
			}
			p.pos += 2
			continue
		case '/':
			return p.in[start:p.pos], nil
		}
		p.pos++
	}
	return p.in[start:p.pos], nil
}

// element := ('~' id | name) ('@' version)?
func (p *parser) element(seg string, offset int) (Element, error) {
	name, version, hasVersion := splitUnescaped(seg, '@')
	if hasVersion && name == "" {
		return Element{}, p.failAt(offset, "version without element")
	}

	var e Element
	if strings.HasPrefix(name, "~") {
		v, err := id.Parse(name[1:])
		if err != nil {
			return Element{}, p.failAt(offset, fmt.Sprintf("bad id %q", name[1:]))
		}
		e = IDElement(v)
	} else {
		plain, err := Unescape(name)
		if err != nil {
			return Element{}, p.failAt(offset, "dangling escape")
		}
		e = NameElement(plain)
	}

	if !hasVersion {
		return e, nil
	}
	v, err := p.version(version, offset+len(name)+1)
	if err != nil {
		return Element{}, err
	}
	return e.WithVersion(v), nil
}

// version := '~' id | label
func (p *parser) version(text string, offset int) (Version, error) {
	if text == "" {
		return Version{}, p.failAt(offset, "empty version")
	}
	if _, _, more := splitUnescaped(text, '@'); more {
		return Version{}, p.failAt(offset, "more than one version")
	}
	if strings.HasPrefix(text, "~") {
		v, err := id.Parse(text[1:])
		if err != nil {
			return Version{}, p.failAt(offset, fmt.Sprintf("bad version id %q", text[1:]))
		}
		return ByID(v), nil
	}
	label, err := Unescape(text)
	if err != nil {
		return Version{}, p.failAt(offset, "dangling escape")
	}
	return Named(label), nil
}

// splitUnescaped splits s at the first unescaped sep.
func splitUnescaped(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
