package compiler

import (
	"fmt"

	"github.com/asaidimu/go-featurefilter/core/expression"
)

func always(expression.Feature) bool { return true }
func never(expression.Feature) bool  { return false }

// builder holds the state of a single compilation.
type builder struct {
	strategy  Strategy
	threshold int
	stats     Stats
}

func (b *builder) build(e expression.Expression) (Predicate, error) {
	b.stats.Nodes++
	switch n := e.(type) {
	case nil:
		return always, nil
	case *expression.Comparison:
		if n == nil {
			return nil, fmt.Errorf("%w: nil comparison", expression.ErrMalformedExpression)
		}
		return b.comparison(n)
	case *expression.Membership:
		if n == nil {
			return nil, fmt.Errorf("%w: nil membership", expression.ErrMalformedExpression)
		}
		return b.membership(n)
	case *expression.Combinator:
		if n == nil {
			return nil, fmt.Errorf("%w: nil combinator", expression.ErrMalformedExpression)
		}
		return b.combinator(n)
	}
	return nil, fmt.Errorf("%w: unsupported node %T", expression.ErrMalformedExpression, e)
}

func (b *builder) comparison(n *expression.Comparison) (Predicate, error) {
	switch n.Op {
	case expression.OpEqual:
		return equals(n.Key, n.Value), nil
	case expression.OpNotEqual:
		return not(equals(n.Key, n.Value)), nil
	case expression.OpMatch:
		return b.match(n)
	}

	test, ok := expression.Ordering(n.Op)
	if !ok {
		return nil, fmt.Errorf("%w: %q", expression.ErrUnknownOperator, n.Op)
	}
	key, literal := n.Key, n.Value
	if key == expression.TypeKey {
		return func(f expression.Feature) bool {
			return expression.CompareType(test, f.GeometryType(), literal)
		}, nil
	}
	return func(f expression.Feature) bool {
		return expression.Compare(test, f.Attribute(key), literal)
	}, nil
}

func (b *builder) match(n *expression.Comparison) (Predicate, error) {
	re, err := expression.CompilePattern(n.Value)
	if err != nil {
		return nil, err
	}
	key := n.Key
	if key == expression.TypeKey {
		return func(f expression.Feature) bool {
			return expression.MatchPattern(re, expression.String(f.GeometryType().String()))
		}, nil
	}
	return func(f expression.Feature) bool {
		return expression.MatchPattern(re, f.Attribute(key))
	}, nil
}

// equals builds a strict equality test. Unrecognized geometry names compile
// to a predicate that never matches.
func equals(key string, literal expression.Value) Predicate {
	if key == expression.TypeKey {
		t, ok := expression.TypeOf(literal)
		if !ok {
			return never
		}
		return func(f expression.Feature) bool { return f.GeometryType() == t }
	}
	return func(f expression.Feature) bool {
		return f.Attribute(key).Equal(literal)
	}
}

func (b *builder) membership(n *expression.Membership) (Predicate, error) {
	if !n.Op.IsMembership() {
		return nil, fmt.Errorf("%w: %q", expression.ErrUnknownOperator, n.Op)
	}

	var in Predicate
	switch {
	case len(n.Values) == 0:
		in = never
	case b.strategy == StrategyClosure:
		in = scan(n.Key, n.Values)
	case len(n.Values) < b.threshold:
		b.stats.InlinedMemberships++
		in = inline(n.Key, n.Values)
	default:
		b.stats.HoistedTables++
		in = hoist(n.Key, n.Values)
	}

	if n.Op == expression.OpNotIn {
		return not(in), nil
	}
	return in, nil
}

// scan tests membership by walking the list on every call.
func scan(key string, values []expression.Value) Predicate {
	values = append([]expression.Value(nil), values...)
	if key == expression.TypeKey {
		return func(f expression.Feature) bool {
			return expression.ContainsType(values, f.GeometryType())
		}
	}
	return func(f expression.Feature) bool {
		return expression.Contains(values, f.Attribute(key))
	}
}

func (b *builder) combinator(n *expression.Combinator) (Predicate, error) {
	children := make([]Predicate, 0, len(n.Children))
	for _, child := range n.Children {
		p, err := b.build(child)
		if err != nil {
			return nil, err
		}
		children = append(children, p)
	}

	switch n.Op {
	case expression.OpAny:
		return anyOf(children), nil
	case expression.OpAll:
		return allOf(children), nil
	case expression.OpNone:
		return not(anyOf(children)), nil
	}
	return nil, fmt.Errorf("%w: %q", expression.ErrUnknownOperator, n.Op)
}

func not(p Predicate) Predicate {
	return func(f expression.Feature) bool { return !p(f) }
}

func anyOf(ps []Predicate) Predicate {
	switch len(ps) {
	case 0:
		return never
	case 1:
		return ps[0]
	}
	return func(f expression.Feature) bool {
		for _, p := range ps {
			if p(f) {
				return true
			}
		}
		return false
	}
}

func allOf(ps []Predicate) Predicate {
	switch len(ps) {
	case 0:
		return always
	case 1:
		return ps[0]
	}
	return func(f expression.Feature) bool {
		for _, p := range ps {
			if !p(f) {
				return false
			}
		}
		return true
	}
}
