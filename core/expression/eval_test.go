package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func props(m map[string]any) MapFeature { return MapFeature{Properties: m} }

func typed(t GeometryType) MapFeature { return MapFeature{Type: t} }

func mustEvaluate(t *testing.T, e Expression, f Feature) bool {
	t.Helper()
	ok, err := Evaluate(e, f)
	require.NoError(t, err)
	return ok
}

func TestEvaluate_Leaves(t *testing.T) {
	assert.True(t, mustEvaluate(t, nil, props(nil)))

	assert.True(t, mustEvaluate(t, Eq("foo", "bar"), props(map[string]any{"foo": "bar"})))
	assert.False(t, mustEvaluate(t, Eq("foo", 0), props(map[string]any{"foo": "0"})))
	assert.True(t, mustEvaluate(t, Neq("foo", 0), props(map[string]any{})))

	assert.False(t, mustEvaluate(t, Lt("foo", "0"), props(map[string]any{"foo": -1})))
	assert.True(t, mustEvaluate(t, Lt("foo", "0"), props(map[string]any{"foo": "-1"})))
	assert.True(t, mustEvaluate(t, Gte("foo", 0), props(map[string]any{"foo": 0})))
	assert.False(t, mustEvaluate(t, Gte("foo", 0), props(map[string]any{})))

	assert.False(t, mustEvaluate(t, In("foo"), props(map[string]any{"foo": 1})))
	assert.True(t, mustEvaluate(t, NotIn("foo"), props(map[string]any{"foo": 1})))
	assert.True(t, mustEvaluate(t, In("foo", 0, 1), props(map[string]any{"foo": 1})))
	assert.False(t, mustEvaluate(t, In("foo", 0, 1), props(map[string]any{"foo": "1"})))
}

func TestEvaluate_Type(t *testing.T) {
	assert.True(t, mustEvaluate(t, Eq(TypeKey, "LineString"), typed(LineString)))
	assert.False(t, mustEvaluate(t, Eq(TypeKey, "LineString"), typed(Point)))
	assert.False(t, mustEvaluate(t, Eq(TypeKey, "Unknown"), typed(Unknown)))
	assert.True(t, mustEvaluate(t, Neq(TypeKey, "Circle"), typed(Point)))
	assert.False(t, mustEvaluate(t, Eq(TypeKey, 2), typed(LineString)))

	assert.True(t, mustEvaluate(t, In(TypeKey, "LineString", "Polygon"), typed(Polygon)))
	assert.False(t, mustEvaluate(t, In(TypeKey, "LineString", "Polygon"), typed(Point)))
	assert.False(t, mustEvaluate(t, In(TypeKey, "Unknown"), typed(Unknown)))

	// Orderings compare raw indices.
	assert.True(t, mustEvaluate(t, Gt(TypeKey, "Point"), typed(Polygon)))
	assert.False(t, mustEvaluate(t, Lt(TypeKey, "Point"), typed(Point)))
	assert.True(t, mustEvaluate(t, Lte(TypeKey, "Point"), typed(Point)))
	assert.True(t, mustEvaluate(t, Lt(TypeKey, 1), typed(Unknown)))
	assert.False(t, mustEvaluate(t, Lt(TypeKey, "Circle"), typed(Unknown)))
}

func TestEvaluate_Combinators(t *testing.T) {
	f := props(map[string]any{"foo": 1})
	assert.False(t, mustEvaluate(t, Any(), f))
	assert.True(t, mustEvaluate(t, All(), f))
	assert.True(t, mustEvaluate(t, None(), f))
	assert.True(t, mustEvaluate(t, Any(Eq("foo", 0), Eq("foo", 1)), f))
	assert.False(t, mustEvaluate(t, All(Eq("foo", 0), Eq("foo", 1)), f))
	assert.False(t, mustEvaluate(t, None(Eq("foo", 0), Eq("foo", 1)), f))
	assert.True(t, mustEvaluate(t, All(nil, Eq("foo", 1)), f))
}

func TestEvaluate_Match(t *testing.T) {
	e := Match("foo", ".*hello.*")
	assert.True(t, mustEvaluate(t, e, props(map[string]any{"foo": "hello world"})))
	assert.False(t, mustEvaluate(t, e, props(map[string]any{"foo": "Hello world"})))
	assert.False(t, mustEvaluate(t, e, props(map[string]any{"foo": 12})))

	e = Match("foo", "2+[a|b]")
	assert.True(t, mustEvaluate(t, e, props(map[string]any{"foo": "222222222a"})))
	assert.False(t, mustEvaluate(t, e, props(map[string]any{"foo": "2"})))

	assert.True(t, mustEvaluate(t, Match(TypeKey, "^Line"), typed(LineString)))
}

func TestEvaluate_Errors(t *testing.T) {
	f := props(nil)

	_, err := Evaluate(&Comparison{Op: "~", Key: "foo", Value: Number(1)}, f)
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = Evaluate(&Membership{Op: "==", Key: "foo"}, f)
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = Evaluate(&Combinator{Op: "xor"}, f)
	assert.ErrorIs(t, err, ErrUnknownOperator)

	// A malformed child is reported even after the result is decided.
	_, err = Evaluate(Any(Eq("foo", nil), &Comparison{Op: "?", Key: "foo"}), props(map[string]any{"foo": nil}))
	assert.ErrorIs(t, err, ErrUnknownOperator)

	var nilComparison *Comparison
	_, err = Evaluate(nilComparison, f)
	assert.ErrorIs(t, err, ErrMalformedExpression)

	_, err = Evaluate(Match("foo", "("), f)
	assert.ErrorIs(t, err, ErrMalformedExpression)

	_, err = Evaluate(&Comparison{Op: OpMatch, Key: "foo", Value: Number(1)}, f)
	assert.ErrorIs(t, err, ErrMalformedExpression)
}
