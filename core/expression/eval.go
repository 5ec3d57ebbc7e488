package expression

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// noType is the index an unrecognized geometry name resolves to. It never
// equals a real feature's type.
const noType GeometryType = -1

// TypeOf resolves a $type literal through the geometry table. Only names of
// known geometry types resolve; everything else maps to an index no feature
// can have.
func TypeOf(v Value) (GeometryType, bool) {
	if v.Kind() == KindString {
		if t, ok := LookupGeometryType(v.Str()); ok {
			return t, true
		}
	}
	return noType, false
}

// TypeIndexOf resolves a $type literal for ordering. Names resolve through
// the geometry table and numbers are taken as raw indices.
func TypeIndexOf(v Value) (GeometryType, bool) {
	switch v.Kind() {
	case KindString:
		return TypeOf(v)
	case KindNumber:
		n := v.Num()
		if n == float64(int(n)) {
			return GeometryType(n), true
		}
	}
	return noType, false
}

// Ordering returns the test an ordering operator applies to a three-way
// comparison result.
func Ordering(op Operator) (func(cmp int) bool, bool) {
	switch op {
	case OpLess:
		return func(cmp int) bool { return cmp < 0 }, true
	case OpGreater:
		return func(cmp int) bool { return cmp > 0 }, true
	case OpLessEqual:
		return func(cmp int) bool { return cmp <= 0 }, true
	case OpGreaterEqual:
		return func(cmp int) bool { return cmp >= 0 }, true
	}
	return nil, false
}

// Compare applies an ordering test to an attribute value and a literal.
// No ordering holds between values of different kinds.
func Compare(test func(cmp int) bool, attr, literal Value) bool {
	cmp, ok := attr.Compare(literal)
	return ok && test(cmp)
}

// CompareType applies an ordering test to raw geometry indices.
func CompareType(test func(cmp int) bool, t GeometryType, literal Value) bool {
	idx, ok := TypeIndexOf(literal)
	if !ok {
		return false
	}
	switch {
	case t < idx:
		return test(-1)
	case t > idx:
		return test(1)
	}
	return test(0)
}

// CompilePattern compiles the literal of an =~ node.
func CompilePattern(literal Value) (*regexp2.Regexp, error) {
	if literal.Kind() != KindString {
		return nil, fmt.Errorf("%w: =~ pattern must be a string, got %s", ErrMalformedExpression, literal.Kind())
	}
	re, err := regexp2.Compile(literal.Str(), regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid =~ pattern %q: %v", ErrMalformedExpression, literal.Str(), err)
	}
	return re, nil
}

// MatchPattern reports whether attr is a string matched by re.
func MatchPattern(re *regexp2.Regexp, attr Value) bool {
	if attr.Kind() != KindString {
		return false
	}
	ok, err := re.MatchString(attr.Str())
	return err == nil && ok
}

// Contains reports whether attr is strictly equal to one of values.
func Contains(values []Value, attr Value) bool {
	for _, v := range values {
		if attr.Equal(v) {
			return true
		}
	}
	return false
}

// ContainsType reports whether t is among the geometry types named by values.
// Unknown is never a member because it has no name in the geometry table.
func ContainsType(values []Value, t GeometryType) bool {
	for _, v := range values {
		if idx, ok := TypeOf(v); ok && idx == t {
			return true
		}
	}
	return false
}

// Evaluate interprets e against f directly, without compiling. It is the
// reference for the compiler's strategies and returns an error for
// operators it does not recognize.
func Evaluate(e Expression, f Feature) (bool, error) {
	switch n := e.(type) {
	case nil:
		return true, nil

	case *Comparison:
		if n == nil {
			return false, fmt.Errorf("%w: nil comparison", ErrMalformedExpression)
		}
		if n.Op == OpEqual || n.Op == OpNotEqual {
			var eq bool
			if n.Key == TypeKey {
				idx, ok := TypeOf(n.Value)
				eq = ok && f.GeometryType() == idx
			} else {
				eq = f.Attribute(n.Key).Equal(n.Value)
			}
			return eq == (n.Op == OpEqual), nil
		}
		if n.Op == OpMatch {
			re, err := CompilePattern(n.Value)
			if err != nil {
				return false, err
			}
			if n.Key == TypeKey {
				return MatchPattern(re, String(f.GeometryType().String())), nil
			}
			return MatchPattern(re, f.Attribute(n.Key)), nil
		}
		test, ok := Ordering(n.Op)
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrUnknownOperator, n.Op)
		}
		if n.Key == TypeKey {
			return CompareType(test, f.GeometryType(), n.Value), nil
		}
		return Compare(test, f.Attribute(n.Key), n.Value), nil

	case *Membership:
		if n == nil {
			return false, fmt.Errorf("%w: nil membership", ErrMalformedExpression)
		}
		if !n.Op.IsMembership() {
			return false, fmt.Errorf("%w: %q", ErrUnknownOperator, n.Op)
		}
		var in bool
		if n.Key == TypeKey {
			in = ContainsType(n.Values, f.GeometryType())
		} else {
			in = Contains(n.Values, f.Attribute(n.Key))
		}
		return in == (n.Op == OpIn), nil

	case *Combinator:
		if n == nil {
			return false, fmt.Errorf("%w: nil combinator", ErrMalformedExpression)
		}
		if !n.Op.IsCombinator() {
			return false, fmt.Errorf("%w: %q", ErrUnknownOperator, n.Op)
		}
		// Every child is checked so that malformed nodes surface even when
		// an earlier child already decides the result.
		anyMatch, allMatch := false, true
		for _, child := range n.Children {
			ok, err := Evaluate(child, f)
			if err != nil {
				return false, err
			}
			anyMatch = anyMatch || ok
			allMatch = allMatch && ok
		}
		switch n.Op {
		case OpAny:
			return anyMatch, nil
		case OpAll:
			return allMatch, nil
		}
		return !anyMatch, nil
	}
	return false, fmt.Errorf("%w: unsupported node %T", ErrMalformedExpression, e)
}
