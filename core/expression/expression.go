// Package expression defines the filter expression model: feature values,
// geometry types, and the node types of a nested-array filter such as
//
//	["all", ["==", "$type", "Polygon"], ["in", "class", "park", "forest"]]
//
// It also defines the truth value of every leaf node, which the compiler
// package composes into predicates.
package expression

import (
	"encoding/json"
	"errors"
)

var (
	// ErrUnknownOperator is returned when a node's operator is not recognized.
	ErrUnknownOperator = errors.New("unknown filter operator")
	// ErrMalformedExpression is returned when a node has the wrong shape.
	ErrMalformedExpression = errors.New("malformed filter expression")
)

// Operator is the first element of a filter node.
type Operator string

// Comparison operators.
const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	// OpMatch tests a string attribute against an ECMAScript regular
	// expression. Non-string attributes never match.
	OpMatch Operator = "=~"
)

// Membership operators.
const (
	OpIn    Operator = "in"
	OpNotIn Operator = "!in"
)

// Combinators.
const (
	OpAny  Operator = "any"
	OpAll  Operator = "all"
	OpNone Operator = "none"
)

// IsComparison reports whether op takes a key and a single value.
func (op Operator) IsComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpMatch:
		return true
	}
	return false
}

// IsMembership reports whether op takes a key and a list of values.
func (op Operator) IsMembership() bool {
	return op == OpIn || op == OpNotIn
}

// IsCombinator reports whether op takes a list of child expressions.
func (op Operator) IsCombinator() bool {
	return op == OpAny || op == OpAll || op == OpNone
}

// Valid reports whether op is any recognized operator.
func (op Operator) Valid() bool {
	return op.IsComparison() || op.IsMembership() || op.IsCombinator()
}

// Expression is a filter node. A nil Expression is the absent filter, which
// matches every feature.
type Expression interface {
	Operator() Operator
	expression()
}

// Comparison tests one attribute against one literal.
type Comparison struct {
	Op    Operator
	Key   string
	Value Value
}

// Membership tests whether an attribute is one of a list of literals.
type Membership struct {
	Op     Operator
	Key    string
	Values []Value
}

// Combinator combines child expressions with any, all or none.
type Combinator struct {
	Op       Operator
	Children []Expression
}

func (c *Comparison) Operator() Operator { return c.Op }
func (m *Membership) Operator() Operator { return m.Op }
func (c *Combinator) Operator() Operator { return c.Op }

func (*Comparison) expression() {}
func (*Membership) expression() {}
func (*Combinator) expression() {}

// MarshalJSON encodes the node in nested-array form.
func (c *Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Op, c.Key, c.Value})
}

// MarshalJSON encodes the node in nested-array form.
func (m *Membership) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(m.Values)+2)
	out = append(out, m.Op, m.Key)
	for _, v := range m.Values {
		out = append(out, v)
	}
	return json.Marshal(out)
}

// MarshalJSON encodes the node in nested-array form.
func (c *Combinator) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(c.Children)+1)
	out = append(out, c.Op)
	for _, child := range c.Children {
		out = append(out, child)
	}
	return json.Marshal(out)
}

func compare(op Operator, key string, v any) *Comparison {
	return &Comparison{Op: op, Key: key, Value: ValueOf(v)}
}

func membership(op Operator, key string, values []any) *Membership {
	m := &Membership{Op: op, Key: key, Values: make([]Value, len(values))}
	for i, v := range values {
		m.Values[i] = ValueOf(v)
	}
	return m
}

// Eq builds ["==", key, v].
func Eq(key string, v any) *Comparison { return compare(OpEqual, key, v) }

// Neq builds ["!=", key, v].
func Neq(key string, v any) *Comparison { return compare(OpNotEqual, key, v) }

// Lt builds ["<", key, v].
func Lt(key string, v any) *Comparison { return compare(OpLess, key, v) }

// Gt builds [">", key, v].
func Gt(key string, v any) *Comparison { return compare(OpGreater, key, v) }

// Lte builds ["<=", key, v].
func Lte(key string, v any) *Comparison { return compare(OpLessEqual, key, v) }

// Gte builds [">=", key, v].
func Gte(key string, v any) *Comparison { return compare(OpGreaterEqual, key, v) }

// Match builds ["=~", key, pattern].
func Match(key, pattern string) *Comparison { return compare(OpMatch, key, pattern) }

// In builds ["in", key, values...].
func In(key string, values ...any) *Membership { return membership(OpIn, key, values) }

// NotIn builds ["!in", key, values...].
func NotIn(key string, values ...any) *Membership { return membership(OpNotIn, key, values) }

// Any builds ["any", children...].
func Any(children ...Expression) *Combinator {
	return &Combinator{Op: OpAny, Children: children}
}

// All builds ["all", children...].
func All(children ...Expression) *Combinator {
	return &Combinator{Op: OpAll, Children: children}
}

// None builds ["none", children...].
func None(children ...Expression) *Combinator {
	return &Combinator{Op: OpNone, Children: children}
}
