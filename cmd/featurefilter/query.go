package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/asaidimu/go-featurefilter/sqlite"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "print the stored features that pass a filter",
		Args:  cobra.NoArgs,
		RunE: storeCmd(func(ctx context.Context, st *sqlite.FeatureStore, flags *pflag.FlagSet, _ []string) error {
			raw, _ := flags.GetString("filter")
			filter, err := loadFilter(raw)
			if err != nil {
				return err
			}
			features, err := st.Query(ctx, filter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, f := range features {
				if err := enc.Encode(f); err != nil {
					return err
				}
			}
			fmt.Fprintf(os.Stderr, "%s features matched\n", humanize.Comma(int64(len(features))))
			return nil
		}),
	}
	cmd.Flags().StringP("filter", "f", "", "filter expression as JSON, or @file (empty matches everything)")
	addStoreFlags(cmd.Flags())
	Root.AddCommand(cmd)
}
