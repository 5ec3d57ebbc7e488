package compiler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/asaidimu/go-featurefilter/core/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleValues = []any{0, 1, -1, 2.5, "0", "1", "a", "b", "", true, false, nil}

func sampleFeatures() []expression.Feature {
	features := []expression.Feature{props(map[string]any{}), props(nil)}
	for _, v := range sampleValues {
		for t := expression.Unknown; t <= expression.Polygon; t++ {
			features = append(features, expression.MapFeature{
				Properties: map[string]any{"k": v},
				Type:       t,
			})
		}
	}
	return features
}

func TestProperty_EqualIsNotNotEqual(t *testing.T) {
	for _, literal := range sampleValues {
		eq := MustCompile(expression.Eq("k", literal))
		neq := MustCompile(expression.Neq("k", literal))
		for _, f := range sampleFeatures() {
			assert.Equal(t, eq(f), !neq(f), "literal %v, feature %v", literal, f)
		}
	}
}

func TestProperty_EmptyMembership(t *testing.T) {
	for name, c := range compilers() {
		in := c.MustCompile(expression.In("k"))
		notIn := c.MustCompile(expression.NotIn("k"))
		typeIn := c.MustCompile(expression.In(expression.TypeKey))
		for _, f := range sampleFeatures() {
			assert.False(t, in(f), name)
			assert.True(t, notIn(f), name)
			assert.False(t, typeIn(f), name)
		}
	}
}

func TestProperty_NoneIsNotAny(t *testing.T) {
	children := []expression.Expression{
		expression.Eq("k", 1),
		expression.Lt("k", "b"),
		expression.In(expression.TypeKey, "Point", "Polygon"),
		expression.NotIn("k", true, nil),
	}
	for i := range children {
		for j := i; j < len(children); j++ {
			none := MustCompile(expression.None(children[i:j]...))
			anyP := MustCompile(expression.Any(children[i:j]...))
			for _, f := range sampleFeatures() {
				assert.Equal(t, anyP(f), !none(f))
			}
		}
	}
}

// TestProperty_ThresholdEquivalence checks that inlined, hoisted and scanned
// membership agree for list sizes on both sides of the threshold.
func TestProperty_ThresholdEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []any{"a", "b", "c", "0", "1", 0, 1, 2, 3, 4.5, true, false, nil}
	for i := 0; i < 40; i++ {
		pool = append(pool, fmt.Sprintf("v%d", i), i+10)
	}

	closure := NewCompiler(nil, &Options{Strategy: StrategyClosure})
	inlined := NewCompiler(nil, &Options{Strategy: StrategyHoisted, MembershipThreshold: 1 << 20})
	hoisted := NewCompiler(nil, &Options{Strategy: StrategyHoisted, MembershipThreshold: 1})
	standard := NewCompiler(nil, nil)

	features := sampleFeatures()
	for _, v := range pool {
		features = append(features, props(map[string]any{"k": v}))
	}

	for _, size := range []int{1, 2, DefaultMembershipThreshold - 1, DefaultMembershipThreshold, DefaultMembershipThreshold + 1, 60} {
		for _, op := range []expression.Operator{expression.OpIn, expression.OpNotIn} {
			values := make([]any, size)
			for i := range values {
				values[i] = pool[rng.Intn(len(pool))]
			}
			e := &expression.Membership{Op: op, Key: "k"}
			for _, v := range values {
				e.Values = append(e.Values, expression.ValueOf(v))
			}

			ps := make([]Predicate, 0, 4)
			for _, c := range []*Compiler{closure, inlined, hoisted, standard} {
				p, err := c.Compile(e)
				require.NoError(t, err)
				ps = append(ps, p)
			}
			for _, f := range features {
				want := ps[0](f)
				for i, p := range ps[1:] {
					assert.Equal(t, want, p(f), "size %d %s strategy %d feature %v", size, op, i+1, f)
				}
			}
		}
	}
}

func TestProperty_TypeThresholdEquivalence(t *testing.T) {
	names := []any{"Point", "LineString", "Polygon", "Unknown", "Circle", 1}
	closure := NewCompiler(nil, &Options{Strategy: StrategyClosure})
	hoisted := NewCompiler(nil, &Options{Strategy: StrategyHoisted, MembershipThreshold: 1})

	for i := range names {
		for j := i; j <= len(names); j++ {
			e := expression.In(expression.TypeKey, names[i:j]...)
			a, b := closure.MustCompile(e), hoisted.MustCompile(e)
			for gt := expression.GeometryType(-1); gt <= expression.Polygon+1; gt++ {
				f := typed(gt)
				assert.Equal(t, a(f), b(f), "values %v type %d", names[i:j], gt)
			}
		}
	}
}
