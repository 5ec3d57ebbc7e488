// Package sqlite stores features in a SQLite table and filters them with
// compiled predicates.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-featurefilter/core/compiler"
	"github.com/asaidimu/go-featurefilter/core/expression"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// Open opens the SQLite database at path. Use ":memory:" for a private
// in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	return db, nil
}

// StoreOptions configures a FeatureStore.
type StoreOptions struct {
	// Table is the name of the feature table.
	Table string
	// BatchSize is how many inserted rows pass between progress logs.
	BatchSize int
}

// DefaultStoreOptions returns the default feature table settings.
func DefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		Table:     "features",
		BatchSize: 1000,
	}
}

// dbRunner abstracts the methods shared by *sql.DB and *sql.Tx.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// StoredFeature is a feature read back from the store.
type StoredFeature struct {
	ID         int64                   `json:"id"`
	Type       expression.GeometryType `json:"type"`
	Properties map[string]any          `json:"properties"`
}

// Attribute implements expression.Feature.
func (f StoredFeature) Attribute(key string) expression.Value {
	raw, ok := f.Properties[key]
	if !ok {
		return expression.Undefined()
	}
	return expression.ValueOf(raw)
}

// GeometryType implements expression.Feature.
func (f StoredFeature) GeometryType() expression.GeometryType { return f.Type }

// FeatureStore keeps features in a single SQLite table.
type FeatureStore struct {
	db       *sql.DB
	compiler *compiler.Compiler
	logger   *zap.Logger
	options  *StoreOptions
}

// NewFeatureStore creates a store over db. Nil arguments select defaults.
func NewFeatureStore(db *sql.DB, c *compiler.Compiler, logger *zap.Logger, options *StoreOptions) *FeatureStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = compiler.NewCompiler(logger, nil)
	}
	if options == nil {
		options = DefaultStoreOptions()
	}
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultStoreOptions().BatchSize
	}
	return &FeatureStore{db: db, compiler: c, logger: logger, options: options}
}

// quoteIdentifier quotes a table or column name.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *FeatureStore) table() string {
	return quoteIdentifier(s.options.Table)
}

// Init creates the feature table and its type index if they do not exist.
func (s *FeatureStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	geometry_type INTEGER NOT NULL DEFAULT 0,
	properties TEXT NOT NULL DEFAULT '{}'
)`, s.table()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (geometry_type)`,
			quoteIdentifier("idx_"+s.options.Table+"_geometry_type"), s.table()),
	}
	for _, stmt := range stmts {
		s.logger.Debug("Executing SQL", zap.String("sql", stmt))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize feature table %s: %w", s.options.Table, err)
		}
	}
	return nil
}

// Insert stores features in one transaction and returns how many were
// written.
func (s *FeatureStore) Insert(ctx context.Context, features ...expression.MapFeature) (int, error) {
	if len(features) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (geometry_type, properties) VALUES (?, ?)`, s.table()))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range features {
		props, err := json.Marshal(f.Attributes())
		if err != nil {
			return 0, fmt.Errorf("failed to encode properties of feature %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, int(f.GeometryType()), string(props)); err != nil {
			return 0, fmt.Errorf("failed to insert feature %d: %w", i, err)
		}
		if (i+1)%s.options.BatchSize == 0 {
			s.logger.Debug("Inserted features", zap.Int("count", i+1))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit features: %w", err)
	}
	s.logger.Info("Stored features", zap.String("table", s.options.Table), zap.Int("count", len(features)))
	return len(features), nil
}

// Count returns the number of stored features.
func (s *FeatureStore) Count(ctx context.Context) (int, error) {
	var n int
	var r dbRunner = s.db
	row := r.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table()))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count features: %w", err)
	}
	return n, nil
}

// Select returns every stored feature that passes p, in ID order.
func (s *FeatureStore) Select(ctx context.Context, p compiler.Predicate) ([]StoredFeature, error) {
	return s.scan(ctx, s.db, nil, p)
}

// Query compiles filter and returns the stored features that pass it.
// Constraints on $type are also pushed into the SQL query so that rows of
// other geometry types are never decoded.
func (s *FeatureStore) Query(ctx context.Context, filter expression.Expression) ([]StoredFeature, error) {
	p, err := s.compiler.Compile(filter)
	if err != nil {
		return nil, err
	}
	types, constrained := typeConstraint(filter)
	if constrained && len(types) == 0 {
		return nil, nil
	}
	if !constrained {
		types = nil
	}
	return s.scan(ctx, s.db, types, p)
}

func (s *FeatureStore) scan(ctx context.Context, r dbRunner, types []expression.GeometryType, p compiler.Predicate) ([]StoredFeature, error) {
	query := fmt.Sprintf(`SELECT id, geometry_type, properties FROM %s`, s.table())
	args := make([]any, 0, len(types))
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, int(t))
		}
		query += " WHERE geometry_type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id"

	s.logger.Debug("Executing SQL SELECT", zap.String("sql", query), zap.Any("params", args))
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", query))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()

	var (
		results []StoredFeature
		scanned int
	)
	for rows.Next() {
		var (
			f     StoredFeature
			gtype int
			props []byte
		)
		if err := rows.Scan(&f.ID, &gtype, &props); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f.Type = expression.GeometryType(gtype)
		if err := json.Unmarshal(props, &f.Properties); err != nil {
			s.logger.Warn("Skipping feature with undecodable properties", zap.Int64("id", f.ID), zap.Error(err))
			continue
		}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		scanned++
		if p(f) {
			results = append(results, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	s.logger.Debug("Filtered features", zap.Int("scanned", scanned), zap.Int("matched", len(results)))
	return results, nil
}

// typeConstraint returns the geometry types a feature must have to pass e,
// when e restricts them. The result may be wider than what e accepts; it
// is only used to skip rows.
func typeConstraint(e expression.Expression) ([]expression.GeometryType, bool) {
	switch n := e.(type) {
	case *expression.Comparison:
		if n == nil || n.Key != expression.TypeKey || n.Op != expression.OpEqual {
			return nil, false
		}
		if t, ok := expression.TypeOf(n.Value); ok {
			return []expression.GeometryType{t}, true
		}
		return []expression.GeometryType{}, true

	case *expression.Membership:
		if n == nil || n.Key != expression.TypeKey || n.Op != expression.OpIn {
			return nil, false
		}
		var seen [expression.Polygon + 1]bool
		types := []expression.GeometryType{}
		for _, v := range n.Values {
			if t, ok := expression.TypeOf(v); ok && !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
		return types, true

	case *expression.Combinator:
		if n == nil || n.Op != expression.OpAll {
			return nil, false
		}
		var (
			result      []expression.GeometryType
			constrained bool
		)
		for _, child := range n.Children {
			types, ok := typeConstraint(child)
			if !ok {
				continue
			}
			if !constrained {
				result, constrained = types, true
				continue
			}
			result = intersect(result, types)
		}
		return result, constrained
	}
	return nil, false
}

func intersect(a, b []expression.GeometryType) []expression.GeometryType {
	out := []expression.GeometryType{}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}
