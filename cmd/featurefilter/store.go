package main

import (
	"context"

	"github.com/asaidimu/go-featurefilter/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// storeCmd opens the feature store named by the --db flag and passes it to fn.
func storeCmd(fn func(ctx context.Context, st *sqlite.FeatureStore, flags *pflag.FlagSet, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		path, _ := flags.GetString("db")
		table, _ := flags.GetString("table")

		db, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		c, err := compilerFromFlags(flags)
		if err != nil {
			return err
		}
		opts := sqlite.DefaultStoreOptions()
		opts.Table = table
		st := sqlite.NewFeatureStore(db, c, logger, opts)

		ctx := cmdContext(cmd)
		if err := st.Init(ctx); err != nil {
			return err
		}
		return fn(ctx, st, flags, args)
	}
}

func addStoreFlags(flags *pflag.FlagSet) {
	flags.String("db", "features.db", "SQLite database path")
	flags.String("table", sqlite.DefaultStoreOptions().Table, "feature table name")
	addCompilerFlags(flags)
}
