// Package compiler turns filter expressions into predicates.
//
// A predicate is built once per Compile call by walking the expression tree
// and composing one closure per node. Two strategies are available and are
// observably identical: StrategyClosure scans membership lists linearly, and
// StrategyHoisted precomputes lookup tables for large membership lists so
// that each evaluation is a single map or array probe.
//
// Predicates hold no mutable state and are safe for concurrent use.
package compiler

import (
	"fmt"

	"github.com/asaidimu/go-featurefilter/core/expression"
	"go.uber.org/zap"
)

// Predicate reports whether a feature passes a compiled filter.
type Predicate func(f expression.Feature) bool

// Strategy selects how membership tests are compiled.
type Strategy string

// Supported strategies.
const (
	StrategyClosure Strategy = "closure"
	StrategyHoisted Strategy = "hoisted"
)

// DefaultMembershipThreshold is the list size at which the hoisted strategy
// switches from an inlined disjunction to a precomputed set.
const DefaultMembershipThreshold = 30

// Options configures a Compiler.
type Options struct {
	Strategy            Strategy
	MembershipThreshold int
}

// DefaultOptions returns the hoisted strategy with the default threshold.
func DefaultOptions() *Options {
	return &Options{
		Strategy:            StrategyHoisted,
		MembershipThreshold: DefaultMembershipThreshold,
	}
}

// Stats describes the shape of one compiled predicate.
type Stats struct {
	Nodes              int
	InlinedMemberships int
	HoistedTables      int
}

// Compiler compiles expressions with a fixed set of options. It keeps no
// state between Compile calls.
type Compiler struct {
	options Options
	logger  *zap.Logger
}

// NewCompiler creates a Compiler. A nil logger disables logging and nil
// options select DefaultOptions.
func NewCompiler(logger *zap.Logger, options *Options) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultOptions()
	}
	opts := *options
	if opts.Strategy == "" {
		opts.Strategy = StrategyHoisted
	}
	if opts.MembershipThreshold <= 0 {
		opts.MembershipThreshold = DefaultMembershipThreshold
	}
	return &Compiler{options: opts, logger: logger}
}

// Options returns the effective options of c.
func (c *Compiler) Options() Options { return c.options }

// Compile builds a predicate for e. A nil expression matches every feature.
// Unknown operators and malformed nodes are reported as errors wrapping
// expression.ErrUnknownOperator or expression.ErrMalformedExpression.
func (c *Compiler) Compile(e expression.Expression) (Predicate, error) {
	p, _, err := c.CompileWithStats(e)
	return p, err
}

// CompileWithStats is Compile that also reports what was built.
func (c *Compiler) CompileWithStats(e expression.Expression) (Predicate, Stats, error) {
	switch c.options.Strategy {
	case StrategyClosure, StrategyHoisted:
	default:
		return nil, Stats{}, fmt.Errorf("unsupported compile strategy: %q", c.options.Strategy)
	}

	b := &builder{strategy: c.options.Strategy, threshold: c.options.MembershipThreshold}
	p, err := b.build(e)
	if err != nil {
		c.logger.Debug("Filter compilation failed", zap.Error(err))
		return nil, Stats{}, err
	}
	c.logger.Debug("Compiled filter",
		zap.String("strategy", string(c.options.Strategy)),
		zap.Int("nodes", b.stats.Nodes),
		zap.Int("inlined_memberships", b.stats.InlinedMemberships),
		zap.Int("hoisted_tables", b.stats.HoistedTables),
	)
	return p, b.stats, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// filters that are fixed at build time.
func (c *Compiler) MustCompile(e expression.Expression) Predicate {
	p, err := c.Compile(e)
	if err != nil {
		panic(err)
	}
	return p
}

var defaultCompiler = NewCompiler(nil, nil)

// Compile compiles e with the default options.
func Compile(e expression.Expression) (Predicate, error) {
	return defaultCompiler.Compile(e)
}

// MustCompile compiles e with the default options and panics on error.
func MustCompile(e expression.Expression) Predicate {
	return defaultCompiler.MustCompile(e)
}

// CompileRaw parses a decoded nested-array filter and compiles it with the
// default options.
func CompileRaw(raw any) (Predicate, error) {
	e, err := expression.Parse(raw)
	if err != nil {
		return nil, err
	}
	return defaultCompiler.Compile(e)
}
