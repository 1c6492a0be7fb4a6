// Package expr builds a boolean tree over columns that compiles to a
// parameterised SQL fragment and a parameter map — never an
// interpolated literal. QueryPlan.Where holds an *Expression; Renderers
// call Compile to get SQL text plus the values to bind.
package expr

import (
	"fmt"
	"strings"
)

// Glue is the boolean operator joining one added clause to the ones
// before it.
type Glue string

const (
	And Glue = "AND"
	Or  Glue = "OR"
)

type clause struct {
	sql    string
	params map[string]any
	glue   Glue
}

// Expression is a fluent builder over a list of parenthesised clauses.
// The zero value is not usable; build one with NewAnd or NewOr.
type Expression struct {
	defaultGlue Glue
	clauses     []clause
	used        map[string]bool
}

// NewAnd starts a builder whose unprefixed add methods glue with AND.
func NewAnd() *Expression { return &Expression{defaultGlue: And, used: map[string]bool{}} }

// NewOr starts a builder whose unprefixed add methods glue with OR.
func NewOr() *Expression { return &Expression{defaultGlue: Or, used: map[string]bool{}} }

func paramName(column string) string {
	return strings.ReplaceAll(column, ".", "_")
}

// uniqueName returns a parameter name guaranteed unused so far in this
// Expression, appending an incrementing numeric suffix on collision.
func (e *Expression) uniqueName(base string) string {
	if !e.used[base] {
		e.used[base] = true
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !e.used[candidate] {
			e.used[candidate] = true
			return candidate
		}
	}
}

func (e *Expression) add(glue Glue, sql string, params map[string]any) *Expression {
	e.clauses = append(e.clauses, clause{sql: sql, params: params, glue: glue})
	return e
}

func (e *Expression) binary(glue Glue, column, op string, value any) *Expression {
	name := e.uniqueName(paramName(column))
	return e.add(glue, fmt.Sprintf("%s %s :%s", column, op, name), map[string]any{name: value})
}

// Eq/NotEq/Lt/Lte/Gt/Gte/Like/NotLike use the builder's default glue.
func (e *Expression) Eq(column string, value any) *Expression      { return e.binary(e.defaultGlue, column, "=", value) }
func (e *Expression) NotEq(column string, value any) *Expression   { return e.binary(e.defaultGlue, column, "!=", value) }
func (e *Expression) Lt(column string, value any) *Expression      { return e.binary(e.defaultGlue, column, "<", value) }
func (e *Expression) Lte(column string, value any) *Expression     { return e.binary(e.defaultGlue, column, "<=", value) }
func (e *Expression) Gt(column string, value any) *Expression      { return e.binary(e.defaultGlue, column, ">", value) }
func (e *Expression) Gte(column string, value any) *Expression     { return e.binary(e.defaultGlue, column, ">=", value) }
func (e *Expression) Like(column string, pattern any) *Expression  { return e.binary(e.defaultGlue, column, "LIKE", pattern) }
func (e *Expression) NotLike(column string, pattern any) *Expression {
	return e.binary(e.defaultGlue, column, "NOT LIKE", pattern)
}

// AndEq/OrEq ... carry an explicit glue, overriding the default.
func (e *Expression) AndEq(column string, value any) *Expression      { return e.binary(And, column, "=", value) }
func (e *Expression) OrEq(column string, value any) *Expression       { return e.binary(Or, column, "=", value) }
func (e *Expression) AndNotEq(column string, value any) *Expression   { return e.binary(And, column, "!=", value) }
func (e *Expression) OrNotEq(column string, value any) *Expression    { return e.binary(Or, column, "!=", value) }
func (e *Expression) AndLt(column string, value any) *Expression      { return e.binary(And, column, "<", value) }
func (e *Expression) OrLt(column string, value any) *Expression       { return e.binary(Or, column, "<", value) }
func (e *Expression) AndLte(column string, value any) *Expression     { return e.binary(And, column, "<=", value) }
func (e *Expression) OrLte(column string, value any) *Expression      { return e.binary(Or, column, "<=", value) }
func (e *Expression) AndGt(column string, value any) *Expression      { return e.binary(And, column, ">", value) }
func (e *Expression) OrGt(column string, value any) *Expression       { return e.binary(Or, column, ">", value) }
func (e *Expression) AndGte(column string, value any) *Expression     { return e.binary(And, column, ">=", value) }
func (e *Expression) OrGte(column string, value any) *Expression      { return e.binary(Or, column, ">=", value) }
func (e *Expression) AndLike(column string, pattern any) *Expression  { return e.binary(And, column, "LIKE", pattern) }
func (e *Expression) OrLike(column string, pattern any) *Expression   { return e.binary(Or, column, "LIKE", pattern) }
func (e *Expression) AndNotLike(column string, pattern any) *Expression {
	return e.binary(And, column, "NOT LIKE", pattern)
}
func (e *Expression) OrNotLike(column string, pattern any) *Expression {
	return e.binary(Or, column, "NOT LIKE", pattern)
}

func (e *Expression) between(glue Glue, column string, lo, hi any, exclusive bool) *Expression {
	base := paramName(column)
	minName := e.uniqueName(base + "_min")
	maxName := e.uniqueName(base + "_max")
	loOp, hiOp := ">=", "<="
	if exclusive {
		loOp, hiOp = ">", "<"
	}
	sql := fmt.Sprintf("%s %s :%s AND %s %s :%s", column, loOp, minName, column, hiOp, maxName)
	return e.add(glue, sql, map[string]any{minName: lo, maxName: hi})
}

func (e *Expression) Between(column string, lo, hi any) *Expression {
	return e.between(e.defaultGlue, column, lo, hi, false)
}
func (e *Expression) BetweenExclusive(column string, lo, hi any) *Expression {
	return e.between(e.defaultGlue, column, lo, hi, true)
}
func (e *Expression) AndBetween(column string, lo, hi any) *Expression { return e.between(And, column, lo, hi, false) }
func (e *Expression) OrBetween(column string, lo, hi any) *Expression  { return e.between(Or, column, lo, hi, false) }
func (e *Expression) AndBetweenExclusive(column string, lo, hi any) *Expression {
	return e.between(And, column, lo, hi, true)
}
func (e *Expression) OrBetweenExclusive(column string, lo, hi any) *Expression {
	return e.between(Or, column, lo, hi, true)
}

func (e *Expression) in(glue Glue, column string, values []any, not bool) *Expression {
	base := paramName(column)
	names := make([]string, len(values))
	params := make(map[string]any, len(values))
	for i, v := range values {
		name := e.uniqueName(fmt.Sprintf("%s_%d", base, i))
		names[i] = ":" + name
		params[name] = v
	}
	op := "IN"
	if not {
		op = "NOT IN"
	}
	sql := fmt.Sprintf("%s %s (%s)", column, op, strings.Join(names, ", "))
	return e.add(glue, sql, params)
}

func (e *Expression) In(column string, values []any) *Expression    { return e.in(e.defaultGlue, column, values, false) }
func (e *Expression) NotIn(column string, values []any) *Expression { return e.in(e.defaultGlue, column, values, true) }
func (e *Expression) AndIn(column string, values []any) *Expression { return e.in(And, column, values, false) }
func (e *Expression) OrIn(column string, values []any) *Expression  { return e.in(Or, column, values, false) }
func (e *Expression) AndNotIn(column string, values []any) *Expression { return e.in(And, column, values, true) }
func (e *Expression) OrNotIn(column string, values []any) *Expression  { return e.in(Or, column, values, true) }

func (e *Expression) null(glue Glue, column string, not bool) *Expression {
	op := "IS NULL"
	if not {
		op = "IS NOT NULL"
	}
	return e.add(glue, fmt.Sprintf("%s %s", column, op), nil)
}

func (e *Expression) IsNull(column string) *Expression       { return e.null(e.defaultGlue, column, false) }
func (e *Expression) IsNotNull(column string) *Expression    { return e.null(e.defaultGlue, column, true) }
func (e *Expression) AndIsNull(column string) *Expression    { return e.null(And, column, false) }
func (e *Expression) OrIsNull(column string) *Expression     { return e.null(Or, column, false) }
func (e *Expression) AndIsNotNull(column string) *Expression { return e.null(And, column, true) }
func (e *Expression) OrIsNotNull(column string) *Expression  { return e.null(Or, column, true) }

func (e *Expression) exists(glue Glue, subSQL string, not bool) *Expression {
	op := "EXISTS"
	if not {
		op = "NOT EXISTS"
	}
	return e.add(glue, fmt.Sprintf("%s (%s)", op, subSQL), nil)
}

func (e *Expression) Exists(subSQL string) *Expression     { return e.exists(e.defaultGlue, subSQL, false) }
func (e *Expression) NotExists(subSQL string) *Expression  { return e.exists(e.defaultGlue, subSQL, true) }
func (e *Expression) AndExists(subSQL string) *Expression  { return e.exists(And, subSQL, false) }
func (e *Expression) OrExists(subSQL string) *Expression   { return e.exists(Or, subSQL, false) }
func (e *Expression) AndNotExists(subSQL string) *Expression { return e.exists(And, subSQL, true) }
func (e *Expression) OrNotExists(subSQL string) *Expression  { return e.exists(Or, subSQL, true) }

// Raw escapes out to a caller-supplied fragment with its own named
// params; the core never validates raw SQL.
func (e *Expression) Raw(glue Glue, sql string, params map[string]any) *Expression {
	renamed := make(map[string]any, len(params))
	text := sql
	for k, v := range params {
		name := e.uniqueName(k)
		if name != k {
			text = strings.ReplaceAll(text, ":"+k, ":"+name)
		}
		renamed[name] = v
	}
	return e.add(glue, text, renamed)
}

// Embed nests another Expression's compiled fragment as one clause,
// renaming any of its parameters that collide with names already used
// in this builder.
func (e *Expression) Embed(glue Glue, child *Expression) *Expression {
	sql, params := child.Compile()
	renamed := make(map[string]any, len(params))
	text := sql
	for k, v := range params {
		name := e.uniqueName(k)
		if name != k {
			text = strings.ReplaceAll(text, ":"+k, ":"+name)
		}
		renamed[name] = v
	}
	return e.add(glue, "("+text+")", renamed)
}

// Compile renders the builder's clauses into one SQL fragment and the
// params map to bind alongside it. The first clause's own glue is
// recorded but not emitted, since there is nothing before it to join.
func (e *Expression) Compile() (string, map[string]any) {
	if len(e.clauses) == 0 {
		return "", map[string]any{}
	}
	var b strings.Builder
	params := make(map[string]any)
	for i, c := range e.clauses {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(string(c.glue))
			b.WriteString(" ")
		}
		b.WriteString("(")
		b.WriteString(c.sql)
		b.WriteString(")")
		for k, v := range c.params {
			params[k] = v
		}
	}
	return b.String(), params
}

// Empty reports whether the builder has no clauses (no WHERE needed).
func (e *Expression) Empty() bool { return len(e.clauses) == 0 }
