// Package filter is a small constraint algebra over qualified field names.
// Expressions are intersections of equality and LIKE constraints and compile
// to SQL through a Formatter supplied by the schema layer.
package filter

import (
	"fmt"
	"slices"
	"strings"
)

// Param marks a placeholder-valued constraint. The name is recorded in the
// compiled parameter list in the position of its '?' marker.
type Param string

// Op is a range operator.
type Op int

const (
	OpEquals Op = iota
	OpNotEquals
	OpLike
)

// Range constrains a single field.
type Range struct {
	op    Op
	value any
}

// Equals matches a literal value or a Param.
func Equals(v any) Range { return Range{op: OpEquals, value: v} }

// NotEquals excludes a literal value or a Param.
func NotEquals(v any) Range { return Range{op: OpNotEquals, value: v} }

// Like matches a wildcard pattern in which '*' matches any run of characters.
func Like(pattern any) Range { return Range{op: OpLike, value: pattern} }

func (r Range) Op() Op     { return r.op }
func (r Range) Value() any { return r.value }

type term struct {
	field string
	rng   *Range
	sub   *Expr
}

// Expr is an intersection of constraints. The zero value is unbounded.
type Expr struct {
	terms []term
}

// Unbounded matches everything.
func Unbounded() Expr { return Expr{} }

// From constrains field, which may be dotted ("reference.id").
func From(field string, r Range) Expr {
	head, rest, nested := strings.Cut(field, ".")
	if nested {
		return FromExpr(head, From(rest, r))
	}
	return Expr{terms: []term{{field: field, rng: &r}}}
}

// FromExpr applies e to the object reached through field.
func FromExpr(field string, e Expr) Expr {
	if e.IsUnbounded() {
		return Expr{}
	}
	return Expr{terms: []term{{field: field, sub: &e}}}
}

func (e Expr) IsUnbounded() bool { return len(e.terms) == 0 }

// Intersect returns the conjunction of e and others. Nested expressions on
// the same field merge; repeated leaf constraints are all kept.
func (e Expr) Intersect(others ...Expr) Expr {
	out := Expr{terms: slices.Clone(e.terms)}
	for _, o := range others {
		for _, t := range o.terms {
			out = out.add(t)
		}
	}
	return out
}

func (e Expr) add(t term) Expr {
	if t.sub != nil {
		for i, existing := range e.terms {
			if existing.field == t.field && existing.sub != nil {
				merged := existing.sub.Intersect(*t.sub)
				e.terms[i] = term{field: t.field, sub: &merged}
				return e
			}
		}
	}
	e.terms = append(e.terms, t)
	return e
}

// Formatter maps logical fields onto physical columns.
type Formatter interface {
	// Column returns the column reference for a qualified field, for example
	// ["parent", "name"] -> "T1.NAME".
	Column(field []string) (string, error)
}

// SQL is compiled criteria text plus the ordered placeholder names.
type SQL struct {
	Text   string
	Params []string
}

// Compile renders e with f. Fields are emitted in lexical order, nested
// expressions in place, joined with AND.
func (e Expr) Compile(f Formatter) (SQL, error) {
	var conds []string
	var params []string
	if err := e.compile(f, nil, &conds, &params); err != nil {
		return SQL{}, err
	}
	return SQL{Text: strings.Join(conds, " AND "), Params: params}, nil
}

func (e Expr) compile(f Formatter, prefix []string, conds, params *[]string) error {
	terms := slices.Clone(e.terms)
	slices.SortStableFunc(terms, func(a, b term) int { return strings.Compare(a.field, b.field) })
	for _, t := range terms {
		field := append(slices.Clone(prefix), t.field)
		if t.sub != nil {
			if err := t.sub.compile(f, field, conds, params); err != nil {
				return err
			}
			continue
		}
		col, err := f.Column(field)
		if err != nil {
			return err
		}
		cond, name, err := condition(col, *t.rng)
		if err != nil {
			return fmt.Errorf("compiling %s: %w", strings.Join(field, "."), err)
		}
		*conds = append(*conds, cond)
		if name != "" {
			*params = append(*params, name)
		}
	}
	return nil
}

func condition(col string, r Range) (string, string, error) {
	switch r.op {
	case OpEquals, OpNotEquals:
		op := "="
		if r.op == OpNotEquals {
			op = "<>"
		}
		if p, ok := r.value.(Param); ok {
			return col + op + "?", string(p), nil
		}
		lit, err := Literal(r.value)
		if err != nil {
			return "", "", err
		}
		return col + op + lit, "", nil
	case OpLike:
		switch v := r.value.(type) {
		case Param:
			return col + ` LIKE ? ESCAPE '\'`, string(v), nil
		case string:
			return col + " LIKE " + Quote(LikePattern(v)) + ` ESCAPE '\'`, "", nil
		default:
			return "", "", fmt.Errorf("unsupported like value %T", r.value)
		}
	default:
		return "", "", fmt.Errorf("unsupported operator %d", r.op)
	}
}

// Literal renders a SQL literal for a constraint value.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return Quote(x), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case int:
		return fmt.Sprintf("%d", x), nil
	case int64:
		return fmt.Sprintf("%d", x), nil
	case fmt.Stringer:
		return Quote(x.String()), nil
	default:
		return "", fmt.Errorf("unsupported literal %T", v)
	}
}

// Quote renders s as a single-quoted SQL string.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// LikePattern converts a '*' wildcard pattern to a LIKE pattern using '\' as
// the escape character.
func LikePattern(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LikeLiteral escapes s for use inside a LIKE pattern so that it matches
// only itself.
func LikeLiteral(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
