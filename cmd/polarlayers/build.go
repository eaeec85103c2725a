package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/polar-layers/internal/pipeline"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild every cached layer",
		Long: `Sync remote inputs when a bucket is configured, build the base map, then
reproject, style and cache each dataset in catalog order. A dataset that
fails is reported and the others still run; the command exits non-zero
when any dataset failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p, closeFn, err := a.pipeline()
			if err != nil {
				return err
			}
			defer func() {
				if err := closeFn(); err != nil {
					a.logger.Error("kafka writer close error", "error", err)
				}
			}()

			report, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d datasets failed", len(failed), len(report.Results))
			}
			return nil
		},
	}
}

func printReport(w io.Writer, r pipeline.Report) {
	fmt.Fprintf(w, "run %s (%s)\n", r.RunID, r.Finished.Sub(r.Started).Round(time.Millisecond))
	for _, res := range r.Results {
		detail := res.Path
		if res.Err != nil {
			detail = res.Err.Error()
		}
		fmt.Fprintf(w, "  %-22s %-7s %7d cells  %s\n", res.Dataset, res.Status, res.Cells, detail)
	}
}
