package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/asaidimu/go-featurefilter/core/compiler"
	"github.com/asaidimu/go-featurefilter/core/expression"
	"github.com/asaidimu/go-featurefilter/core/rules"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loadRuleSet reads a JSON object mapping rule names to filters. Rules are
// added in name order.
func loadRuleSet(path string, c *compiler.Compiler) (*rules.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var defs map[string]any
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to decode rules file %s: %w", path, err)
	}

	rs, err := rules.NewRuleSet(c, logger)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := rs.AddRaw(name, defs[name]); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// writeRuleMatches prints one line per feature: its index followed by the
// names of the rules it matched, in rule order.
func writeRuleMatches(w io.Writer, rs *rules.RuleSet, results map[string]*roaring.Bitmap, features int) error {
	all := rs.Rules()
	names := make([]string, 0, len(all))
	for i := 0; i < features; i++ {
		names = names[:0]
		for _, r := range all {
			if results[r.ID].Contains(uint32(i)) {
				names = append(names, r.Name)
			}
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\n", i, strings.Join(names, ",")); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	cmd := &cobra.Command{
		Use:   "rules [file]",
		Short: "report which named rules each NDJSON feature matches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			path, _ := flags.GetString("rules")
			c, err := compilerFromFlags(flags)
			if err != nil {
				return err
			}
			rs, err := loadRuleSet(path, c)
			if err != nil {
				return err
			}

			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()

			var features []expression.Feature
			if _, err := readFeatures(in, func(_ []byte, f expression.MapFeature) error {
				features = append(features, f)
				return nil
			}); err != nil {
				return err
			}

			results, err := rs.Evaluate(cmdContext(cmd), features)
			if err != nil {
				return err
			}
			if err := writeRuleMatches(cmd.OutOrStdout(), rs, results, len(features)); err != nil {
				return err
			}
			for _, r := range rs.Rules() {
				logger.Info("Rule matches",
					zap.String("rule", r.Name),
					zap.String("matched", humanize.Comma(int64(results[r.ID].GetCardinality()))),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringP("rules", "r", "", "JSON file mapping rule names to filters")
	cmd.MarkFlagRequired("rules")
	addCompilerFlags(cmd.Flags())
	Root.AddCommand(cmd)
}
