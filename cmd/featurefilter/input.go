package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/asaidimu/go-featurefilter/core/compiler"
	"github.com/asaidimu/go-featurefilter/core/expression"
	"github.com/spf13/pflag"
)

// maxLineSize bounds a single NDJSON feature.
const maxLineSize = 16 << 20

// loadFilter parses a filter flag value: inline JSON, or @path to read the
// JSON from a file.
func loadFilter(value string) (expression.Expression, error) {
	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read filter file: %w", err)
		}
		data = b
	}
	return expression.ParseJSON(data)
}

// addCompilerFlags registers the compile strategy flags on flags.
func addCompilerFlags(flags *pflag.FlagSet) {
	flags.String("strategy", string(compiler.StrategyHoisted), "compile strategy (closure or hoisted)")
	flags.Int("threshold", compiler.DefaultMembershipThreshold, "list size at which membership tests are hoisted into a set")
}

// compilerFromFlags builds a compiler from the flags added by
// addCompilerFlags.
func compilerFromFlags(flags *pflag.FlagSet) (*compiler.Compiler, error) {
	strategy, _ := flags.GetString("strategy")
	threshold, _ := flags.GetInt("threshold")
	switch compiler.Strategy(strategy) {
	case compiler.StrategyClosure, compiler.StrategyHoisted:
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	return compiler.NewCompiler(logger, &compiler.Options{
		Strategy:            compiler.Strategy(strategy),
		MembershipThreshold: threshold,
	}), nil
}

// openInput opens the named file, or stdin when no file is given.
func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}
	return f, nil
}

// readFeatures decodes newline-delimited JSON features from r and calls fn
// with each raw line and its decoded feature. Blank lines are skipped.
func readFeatures(r io.Reader, fn func(line []byte, f expression.MapFeature) error) (int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		read   int64
		lineNo int
	)
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		read += int64(len(line)) + 1
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		f, err := expression.DecodeFeature(line)
		if err != nil {
			return read, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(line, f); err != nil {
			return read, err
		}
	}
	return read, sc.Err()
}
