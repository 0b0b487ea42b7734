// Package statement builds and executes parameterized SQL. A Template holds
// SQL text and the ordered logical name of every '?' marker; names may
// repeat. A Statement is an immutable list of bindings applied to a template
// when it is executed, so one logical value fills every position that shares
// its name.
package statement

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

var (
	// ErrUnknownParameter is returned when a binding names a parameter the
	// template does not have.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrUnboundParameter is returned when a template position has no value.
	ErrUnboundParameter = errors.New("unbound parameter")
)

// Template is SQL text with one logical name per '?' marker, in order.
type Template struct {
	Text  string
	Names []string
}

// New returns a template.
func New(text string, names ...string) Template {
	return Template{Text: text, Names: names}
}

// Validate checks that the marker count matches the name count.
func (t Template) Validate() error {
	if n := countMarkers(t.Text); n != len(t.Names) {
		return fmt.Errorf("template has %d markers but %d names: %s", n, len(t.Names), t.Text)
	}
	return nil
}

// countMarkers counts '?' outside single-quoted literals.
func countMarkers(text string) int {
	n := 0
	quoted := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'':
			quoted = !quoted
		case '?':
			if !quoted {
				n++
			}
		}
	}
	return n
}

// positions maps each logical name to every position it occupies.
func (t Template) positions() map[string][]int {
	m := make(map[string][]int, len(t.Names))
	for i, name := range t.Names {
		m[name] = append(m[name], i)
	}
	return m
}

// Composite expands one logical value into several named sub-bindings.
type Composite interface {
	BindTo(name string, b *Bindings) error
}

// Bindings receives the sub-bindings of a Composite.
type Bindings struct {
	set func(name string, v any) error
}

// Set binds a leaf value under name.
func (b *Bindings) Set(name string, v any) error {
	return b.set(name, v)
}

// Composite binds a nested composite under name.
func (b *Bindings) Composite(name string, c Composite) error {
	return c.BindTo(name, b)
}

// Visit returns the names a composite binds under name, in order.
func Visit(name string, c Composite) ([]string, error) {
	var names []string
	b := &Bindings{set: func(n string, _ any) error {
		names = append(names, n)
		return nil
	}}
	if err := c.BindTo(name, b); err != nil {
		return nil, err
	}
	return names, nil
}

type binding struct {
	name      string
	pos       int
	value     any
	composite Composite
	clob      func(io.Writer) error
}

// Statement is a template plus bindings. Bind methods return a new Statement
// and never modify the receiver.
type Statement struct {
	tmpl     Template
	bindings []binding
}

// Of starts a statement from a template.
func Of(t Template) Statement {
	return Statement{tmpl: t}
}

func (s Statement) Text() string       { return s.tmpl.Text }
func (s Statement) Template() Template { return s.tmpl }

func (s Statement) with(b binding) Statement {
	return Statement{tmpl: s.tmpl, bindings: append(slices.Clip(s.bindings), b)}
}

// Bind binds v at every position named name. Values implementing
// driver.Valuer are passed to the driver unchanged.
func (s Statement) Bind(name string, v any) Statement {
	return s.with(binding{name: name, pos: -1, value: v})
}

func (s Statement) BindString(name, v string) Statement { return s.Bind(name, v) }
func (s Statement) BindInt64(name string, v int64) Statement {
	return s.Bind(name, v)
}
func (s Statement) BindBool(name string, v bool) Statement { return s.Bind(name, v) }
func (s Statement) BindBytes(name string, v []byte) Statement {
	return s.Bind(name, v)
}

// BindNull binds SQL NULL.
func (s Statement) BindNull(name string) Statement { return s.Bind(name, nil) }

// BindClob binds character data produced by write when the statement is
// built.
func (s Statement) BindClob(name string, write func(io.Writer) error) Statement {
	return s.with(binding{name: name, pos: -1, clob: write})
}

// BindAt binds v at a zero-based marker position.
func (s Statement) BindAt(pos int, v any) Statement {
	return s.with(binding{pos: pos, value: v})
}

// BindComposite expands c under name.
func (s Statement) BindComposite(name string, c Composite) Statement {
	return s.with(binding{name: name, pos: -1, composite: c})
}

// Args applies every binding in order and returns the positional arguments.
func (s Statement) Args() ([]any, error) {
	positions := s.tmpl.positions()
	args := make([]any, len(s.tmpl.Names))
	bound := make([]bool, len(args))

	set := func(name string, v any) error {
		ps, ok := positions[name]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownParameter, name)
		}
		for _, p := range ps {
			args[p] = v
			bound[p] = true
		}
		return nil
	}
	bindings := &Bindings{set: set}

	for _, b := range s.bindings {
		switch {
		case b.pos >= 0:
			if b.pos >= len(args) {
				return nil, fmt.Errorf("%w: position %d", ErrUnknownParameter, b.pos)
			}
			args[b.pos] = b.value
			bound[b.pos] = true
		case b.composite != nil:
			if err := b.composite.BindTo(b.name, bindings); err != nil {
				return nil, fmt.Errorf("binding %s: %w", b.name, err)
			}
		case b.clob != nil:
			var sb strings.Builder
			if err := b.clob(&sb); err != nil {
				return nil, fmt.Errorf("writing %s: %w", b.name, err)
			}
			if err := set(b.name, sb.String()); err != nil {
				return nil, err
			}
		default:
			if err := set(b.name, b.value); err != nil {
				return nil, err
			}
		}
	}

	for i, ok := range bound {
		if !ok {
			return nil, fmt.Errorf("%w %q at position %d", ErrUnboundParameter, s.tmpl.Names[i], i)
		}
	}
	return args, nil
}
