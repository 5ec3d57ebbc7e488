package main

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/asaidimu/go-featurefilter/core/compiler"
	"github.com/asaidimu/go-featurefilter/core/expression"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type matchSummary struct {
	Features int
	Matched  int
	Bytes    int64
	Elapsed  time.Duration
}

func (s matchSummary) String() string {
	pct := 0.0
	if s.Features > 0 {
		pct = 100 * float64(s.Matched) / float64(s.Features)
	}
	return fmt.Sprintf("matched %s of %s features (%.1f%%), %s read in %s",
		humanize.Comma(int64(s.Matched)), humanize.Comma(int64(s.Features)), pct,
		humanize.Bytes(uint64(s.Bytes)), s.Elapsed.Round(time.Millisecond))
}

// matchFeatures copies every NDJSON line of r whose feature passes p to w.
func matchFeatures(p compiler.Predicate, r io.Reader, w io.Writer) (matchSummary, error) {
	start := time.Now()
	bw := bufio.NewWriter(w)
	var sum matchSummary
	n, err := readFeatures(r, func(line []byte, f expression.MapFeature) error {
		sum.Features++
		if !p(f) {
			return nil
		}
		sum.Matched++
		if _, err := bw.Write(line); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	})
	sum.Bytes = n
	sum.Elapsed = time.Since(start)
	if err != nil {
		return sum, err
	}
	return sum, bw.Flush()
}

func init() {
	cmd := &cobra.Command{
		Use:   "match [file]",
		Short: "print the NDJSON features that pass a filter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			raw, _ := flags.GetString("filter")
			filter, err := loadFilter(raw)
			if err != nil {
				return err
			}
			c, err := compilerFromFlags(flags)
			if err != nil {
				return err
			}
			p, stats, err := c.CompileWithStats(filter)
			if err != nil {
				return err
			}
			logger.Debug("Compiled filter",
				zap.Int("nodes", stats.Nodes),
				zap.Int("inlined", stats.InlinedMemberships),
				zap.Int("hoisted", stats.HoistedTables),
			)

			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()

			sum, err := matchFeatures(p, in, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), sum)
			return nil
		},
	}
	cmd.Flags().StringP("filter", "f", "", "filter expression as JSON, or @file")
	cmd.MarkFlagRequired("filter")
	addCompilerFlags(cmd.Flags())
	Root.AddCommand(cmd)
}
