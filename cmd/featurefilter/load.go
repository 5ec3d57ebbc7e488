package main

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-featurefilter/core/expression"
	"github.com/asaidimu/go-featurefilter/sqlite"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func init() {
	cmd := &cobra.Command{
		Use:   "load [file]",
		Short: "load NDJSON features into the SQLite feature store",
		Args:  cobra.MaximumNArgs(1),
		RunE: storeCmd(func(ctx context.Context, st *sqlite.FeatureStore, _ *pflag.FlagSet, args []string) error {
			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()

			var features []expression.MapFeature
			size, err := readFeatures(in, func(_ []byte, f expression.MapFeature) error {
				features = append(features, f)
				return nil
			})
			if err != nil {
				return err
			}
			n, err := st.Insert(ctx, features...)
			if err != nil {
				return err
			}
			total, err := st.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %s features (%s), %s stored\n",
				humanize.Comma(int64(n)), humanize.Bytes(uint64(size)), humanize.Comma(int64(total)))
			return nil
		}),
	}
	addStoreFlags(cmd.Flags())
	Root.AddCommand(cmd)
}
