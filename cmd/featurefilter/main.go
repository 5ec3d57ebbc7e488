package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Root = &cobra.Command{
		Use:           "featurefilter [command]",
		Short:         "Compile feature filter expressions and apply them to GeoJSON-like features",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logLevel.SetLevel(zapcore.DebugLevel)
			}
		},
	}

	verbose  bool
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger   = zap.NewNop()
)

func init() {
	Root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// cmdContext returns the command's context, which is unset when a command
// is executed without ExecuteContext.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = logLevel
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func main() {
	l, err := newLogger()
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger = l
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := Root.ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}
