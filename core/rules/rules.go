// Package rules binds named filter expressions to compiled predicates so a
// renderer or query engine can ask which rules a feature matches.
//
// Every rule is compiled on its own when it is added; compiled predicates
// are never shared between rules, even when their filters are identical.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-featurefilter/core/compiler"
	"github.com/asaidimu/go-featurefilter/core/expression"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cancelCheckInterval is how many features a worker evaluates between
// context checks.
const cancelCheckInterval = 256

// Rule is a named filter and its compiled predicate.
type Rule struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Filter expression.Expression `json:"filter"`

	predicate compiler.Predicate
}

// Matches reports whether f passes the rule's filter.
func (r *Rule) Matches(f expression.Feature) bool {
	return r.predicate(f)
}

// RuleSet is an ordered collection of rules. It is safe for concurrent use.
type RuleSet struct {
	compiler *compiler.Compiler
	logger   *zap.Logger
	bus      *events.TypedEventBus[RuleEvent]

	mu    sync.RWMutex
	rules []*Rule

	subMu         sync.RWMutex
	subscriptions map[string]*SubscriptionInfo
}

func newID() string {
	return uuid.New().String()
}

// NewRuleSet creates an empty rule set. A nil compiler selects the default
// compiler options and a nil logger disables logging.
func NewRuleSet(c *compiler.Compiler, logger *zap.Logger) (*RuleSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = compiler.NewCompiler(logger, nil)
	}
	bus, err := events.NewTypedEventBus[RuleEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &RuleSet{
		compiler:      c,
		logger:        logger,
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

// Add compiles filter and appends it as a new rule, returning the rule ID.
func (rs *RuleSet) Add(name string, filter expression.Expression) (string, error) {
	start := time.Now()
	rule := &Rule{ID: newID(), Name: name, Filter: filter}

	p, err := rs.compiler.Compile(filter)
	if err != nil {
		rs.logger.Warn("Rejected rule with invalid filter", zap.String("name", name), zap.Error(err))
		rs.emit(newEvent(RuleCompileFailed, rule, err, start))
		return "", fmt.Errorf("failed to compile rule %q: %w", name, err)
	}
	rule.predicate = p

	rs.mu.Lock()
	rs.rules = append(rs.rules, rule)
	rs.mu.Unlock()

	rs.logger.Debug("Added rule", zap.String("id", rule.ID), zap.String("name", name))
	rs.emit(newEvent(RuleAdded, rule, nil, start))
	return rule.ID, nil
}

// AddRaw parses a decoded nested-array filter and adds it as a rule.
func (rs *RuleSet) AddRaw(name string, raw any) (string, error) {
	filter, err := expression.Parse(raw)
	if err != nil {
		rs.emit(newEvent(RuleCompileFailed, &Rule{Name: name}, err, time.Time{}))
		return "", fmt.Errorf("failed to parse rule %q: %w", name, err)
	}
	return rs.Add(name, filter)
}

// Remove deletes the rule with the given ID and reports whether it existed.
func (rs *RuleSet) Remove(id string) bool {
	rs.mu.Lock()
	var removed *Rule
	for i, r := range rs.rules {
		if r.ID == id {
			removed = r
			rs.rules = append(rs.rules[:i:i], rs.rules[i+1:]...)
			break
		}
	}
	rs.mu.Unlock()

	if removed == nil {
		return false
	}
	rs.logger.Debug("Removed rule", zap.String("id", id), zap.String("name", removed.Name))
	rs.emit(newEvent(RuleRemoved, removed, nil, time.Time{}))
	return true
}

// Get returns the rule with the given ID.
func (rs *RuleSet) Get(id string) (*Rule, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	for _, r := range rs.rules {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Rules returns the rules in insertion order.
func (rs *RuleSet) Rules() []*Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]*Rule(nil), rs.rules...)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rules)
}

// Match returns the rules f matches, in insertion order.
func (rs *RuleSet) Match(f expression.Feature) []*Rule {
	var matched []*Rule
	for _, r := range rs.Rules() {
		if r.Matches(f) {
			matched = append(matched, r)
		}
	}
	return matched
}

// First returns the first rule f matches.
func (rs *RuleSet) First(f expression.Feature) (*Rule, bool) {
	for _, r := range rs.Rules() {
		if r.Matches(f) {
			return r, true
		}
	}
	return nil, false
}

// Evaluate tests every feature against every rule, one goroutine per rule,
// and returns for each rule ID the bitmap of matching feature indices.
func (rs *RuleSet) Evaluate(ctx context.Context, features []expression.Feature) (map[string]*roaring.Bitmap, error) {
	start := time.Now()
	rules := rs.Rules()
	results := make([]*roaring.Bitmap, len(rules))

	g, ctx := errgroup.WithContext(ctx)
	for i, r := range rules {
		g.Go(func() error {
			bm := roaring.New()
			for idx, f := range features {
				if idx%cancelCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if r.Matches(f) {
					bm.Add(uint32(idx))
				}
			}
			results[i] = bm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rule evaluation aborted: %w", err)
	}

	out := make(map[string]*roaring.Bitmap, len(rules))
	counts := make(map[string]int, len(rules))
	for i, r := range rules {
		out[r.ID] = results[i]
		counts[r.ID] = int(results[i].GetCardinality())
	}

	event := newEvent(EvaluationCompleted, nil, nil, start)
	event.Features = len(features)
	event.Matches = counts
	rs.emit(event)
	rs.logger.Debug("Evaluated rules",
		zap.Int("rules", len(rules)),
		zap.Int("features", len(features)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}
