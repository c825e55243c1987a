// Package query builds composable filter expressions over message envelope
// fields and compiles them to IMAP SEARCH programs.
//
// Field builders return slices so a single call can contribute several
// alternatives to the enclosing combinator:
//
//	query.Compile(query.AnyOf(query.From("user@a.com", "user@b.com")))
//	query.Compile(query.AllOf(query.From("@mydomain"), query.To("inbox@")))
//
// Expressions are immutable; compiling the same tree twice yields an
// identical string.
package query

import "fmt"

// Expr is one node of a filter expression tree.
type Expr interface {
	wire() string
}

type fieldMatch struct {
	field string
	value string
}

func (m fieldMatch) wire() string {
	return fmt.Sprintf("(%s %q)", m.field, m.value)
}

type orExpr []Expr

// OR folds left: (OR (OR a b) c), never a flat n-ary OR. Servers parse the
// two-operand form only, so the nesting is part of the wire contract.
func (e orExpr) wire() string {
	result := e[0].wire()
	for _, child := range e[1:] {
		result = "(OR " + result + " " + child.wire() + ")"
	}
	return result
}

type andExpr []Expr

// AND is implicit juxtaposition in IMAP search syntax, folded left the same
// way: ((a b) c).
func (e andExpr) wire() string {
	result := e[0].wire()
	for _, child := range e[1:] {
		result = "(" + result + " " + child.wire() + ")"
	}
	return result
}

type notExpr []Expr

func (e notExpr) wire() string {
	result := "(NOT"
	for _, child := range e {
		result += " " + child.wire()
	}
	return result + ")"
}

// From matches the envelope From field against each given value.
func From(values ...string) []Expr {
	return fields("FROM", values)
}

// To matches the envelope To field against each given value.
func To(values ...string) []Expr {
	return fields("TO", values)
}

// Cc matches the envelope Cc field against each given value.
func Cc(values ...string) []Expr {
	return fields("CC", values)
}

// Subject matches the subject against each given value.
func Subject(values ...string) []Expr {
	return fields("SUBJECT", values)
}

func fields(name string, values []string) []Expr {
	exprs := make([]Expr, len(values))
	for i, v := range values {
		exprs[i] = fieldMatch{field: name, value: v}
	}
	return exprs
}

// AnyOf combines all expressions from the given groups with OR. Empty
// groups contribute nothing; an entirely empty combination compiles away.
func AnyOf(groups ...[]Expr) []Expr {
	exprs := flatten(groups)
	if len(exprs) == 0 {
		return nil
	}
	return []Expr{orExpr(exprs)}
}

// AllOf combines all expressions from the given groups with AND.
func AllOf(groups ...[]Expr) []Expr {
	exprs := flatten(groups)
	if len(exprs) == 0 {
		return nil
	}
	return []Expr{andExpr(exprs)}
}

// Not negates the expressions from the given groups.
func Not(groups ...[]Expr) []Expr {
	exprs := flatten(groups)
	if len(exprs) == 0 {
		return nil
	}
	return []Expr{notExpr(exprs)}
}

func flatten(groups [][]Expr) []Expr {
	var exprs []Expr
	for _, g := range groups {
		exprs = append(exprs, g...)
	}
	return exprs
}

// Compile renders an expression list as one SEARCH program. A single
// expression compiles to itself; multiple expressions are implicitly
// OR-combined.
func Compile(exprs []Expr) string {
	switch len(exprs) {
	case 0:
		return ""
	case 1:
		return exprs[0].wire()
	default:
		return orExpr(exprs).wire()
	}
}
