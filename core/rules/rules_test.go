package rules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-featurefilter/core/compiler"
	"github.com/asaidimu/go-featurefilter/core/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRuleSet(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(nil, zap.NewNop())
	require.NoError(t, err)
	return rs
}

func feature(t expression.GeometryType, props map[string]any) expression.MapFeature {
	return expression.MapFeature{Properties: props, Type: t}
}

func TestRuleSet_AddAndMatch(t *testing.T) {
	rs := newTestRuleSet(t)

	parks, err := rs.AddRaw("parks", []any{"all", []any{"==", "$type", "Polygon"}, []any{"in", "class", "park", "forest"}})
	require.NoError(t, err)
	roads, err := rs.Add("roads", expression.All(expression.Eq(expression.TypeKey, "LineString"), expression.Gte("lanes", 2)))
	require.NoError(t, err)
	everything, err := rs.Add("everything", nil)
	require.NoError(t, err)

	assert.NotEqual(t, parks, roads)
	assert.Equal(t, 3, rs.Len())

	park := feature(expression.Polygon, map[string]any{"class": "park"})
	matched := rs.Match(park)
	require.Len(t, matched, 2)
	assert.Equal(t, parks, matched[0].ID)
	assert.Equal(t, everything, matched[1].ID)

	first, ok := rs.First(feature(expression.LineString, map[string]any{"lanes": 4}))
	require.True(t, ok)
	assert.Equal(t, "roads", first.Name)

	r, ok := rs.Get(roads)
	require.True(t, ok)
	assert.Equal(t, "roads", r.Name)

	names := make([]string, 0, 3)
	for _, r := range rs.Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"parks", "roads", "everything"}, names)
}

func TestRuleSet_Remove(t *testing.T) {
	rs := newTestRuleSet(t)
	a, err := rs.Add("a", expression.Eq("k", 1))
	require.NoError(t, err)
	b, err := rs.Add("b", expression.Eq("k", 1))
	require.NoError(t, err)

	assert.True(t, rs.Remove(a))
	assert.False(t, rs.Remove(a))
	_, ok := rs.Get(a)
	assert.False(t, ok)

	matched := rs.Match(feature(expression.Point, map[string]any{"k": 1}))
	require.Len(t, matched, 1)
	assert.Equal(t, b, matched[0].ID)
}

func TestRuleSet_AddErrors(t *testing.T) {
	rs := newTestRuleSet(t)

	_, err := rs.AddRaw("bad", []any{"xor", "a"})
	assert.ErrorIs(t, err, expression.ErrUnknownOperator)

	_, err = rs.Add("bad", &expression.Comparison{Op: "~", Key: "a"})
	assert.ErrorIs(t, err, expression.ErrUnknownOperator)

	assert.Equal(t, 0, rs.Len())
	_, ok := rs.First(feature(expression.Point, nil))
	assert.False(t, ok)
}

func TestRuleSet_Evaluate(t *testing.T) {
	rs, err := NewRuleSet(compiler.NewCompiler(nil, &compiler.Options{Strategy: compiler.StrategyClosure}), nil)
	require.NoError(t, err)

	even, err := rs.AddRaw("even", []any{"in", "n", 0.0, 2.0, 4.0, 6.0, 8.0})
	require.NoError(t, err)
	big, err := rs.AddRaw("big", []any{">=", "n", 5.0})
	require.NoError(t, err)
	none, err := rs.AddRaw("none", []any{"any"})
	require.NoError(t, err)

	features := make([]expression.Feature, 10)
	for i := range features {
		features[i] = feature(expression.Point, map[string]any{"n": i})
	}

	results, err := rs.Evaluate(context.Background(), features)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []uint32{0, 2, 4, 6, 8}, results[even].ToArray())
	assert.Equal(t, []uint32{5, 6, 7, 8, 9}, results[big].ToArray())
	assert.True(t, results[none].IsEmpty())
}

func TestRuleSet_EvaluateCancelled(t *testing.T) {
	rs := newTestRuleSet(t)
	_, err := rs.Add("all", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rs.Evaluate(ctx, []expression.Feature{feature(expression.Point, nil)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRuleSet_Events(t *testing.T) {
	rs := newTestRuleSet(t)

	var mu sync.Mutex
	received := make(map[RuleEventType][]RuleEvent)
	record := func(ctx context.Context, e RuleEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received[e.Type] = append(received[e.Type], e)
		return nil
	}
	count := func(eventType RuleEventType) int {
		mu.Lock()
		defer mu.Unlock()
		return len(received[eventType])
	}

	addedSub := rs.Subscribe(RuleAdded, "added", record)
	rs.Subscribe(RuleRemoved, "removed", record)
	rs.Subscribe(RuleCompileFailed, "failed", record)
	rs.Subscribe(EvaluationCompleted, "evaluated", record)
	assert.Len(t, rs.Subscriptions(), 4)

	id, err := rs.Add("a", expression.Eq("k", 1))
	require.NoError(t, err)
	_, err = rs.AddRaw("bad", []any{"nope"})
	require.Error(t, err)
	_, err = rs.Evaluate(context.Background(), []expression.Feature{feature(expression.Point, map[string]any{"k": 1})})
	require.NoError(t, err)
	require.True(t, rs.Remove(id))

	for _, eventType := range []RuleEventType{RuleAdded, RuleRemoved, RuleCompileFailed, EvaluationCompleted} {
		assert.Eventually(t, func() bool { return count(eventType) == 1 }, time.Second, 10*time.Millisecond, string(eventType))
	}

	mu.Lock()
	assert.Equal(t, id, received[RuleAdded][0].RuleID)
	assert.Equal(t, "a", received[RuleAdded][0].RuleName)
	require.NotNil(t, received[RuleCompileFailed][0].Error)
	assert.Equal(t, "bad", received[RuleCompileFailed][0].RuleName)
	assert.Equal(t, 1, received[EvaluationCompleted][0].Features)
	assert.Equal(t, map[string]int{id: 1}, received[EvaluationCompleted][0].Matches)
	mu.Unlock()

	rs.Unsubscribe(addedSub)
	assert.Len(t, rs.Subscriptions(), 3)
	_, err = rs.Add("b", nil)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, count(RuleAdded))
}
