package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/polar-layers/internal/cache"
)

func newLsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List datasets and their cache state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			entries, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printEntries(w io.Writer, entries []cache.Entry) {
	for _, e := range entries {
		if !e.Available {
			fmt.Fprintf(w, "%-22s not available\n", e.Dataset)
			continue
		}
		fmt.Fprintf(w, "%-22s %9d bytes  %s\n", e.Dataset, e.Size, e.Modified.Format(time.RFC3339))
	}
}
