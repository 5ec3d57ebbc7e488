package compiler

import (
	"math"

	"github.com/asaidimu/go-featurefilter/core/expression"
)

// inline compiles a short membership list to a disjunction of equality
// tests, the same as ["any", ["==", key, v1], ["==", key, v2], ...].
func inline(key string, values []expression.Value) Predicate {
	tests := make([]Predicate, 0, len(values))
	for _, v := range values {
		tests = append(tests, equals(key, v))
	}
	return anyOf(tests)
}

// hoist compiles a long membership list to a lookup table built once here
// and only read afterwards.
func hoist(key string, values []expression.Value) Predicate {
	if key == expression.TypeKey {
		var table [expression.Polygon + 1]bool
		for _, v := range values {
			if t, ok := expression.TypeOf(v); ok {
				table[t] = true
			}
		}
		return func(f expression.Feature) bool {
			t := f.GeometryType()
			return t >= 0 && int(t) < len(table) && table[t]
		}
	}

	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v.Kind() == expression.KindNumber && math.IsNaN(v.Num()) {
			continue
		}
		set[v.Key()] = struct{}{}
	}
	return func(f expression.Feature) bool {
		_, ok := set[f.Attribute(key).Key()]
		return ok
	}
}
