package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <dataset>",
		Short: "Write a cached layer as PNG or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "png" && format != "csv" {
				return fmt.Errorf("unknown format %q, want png or csv", format)
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			shell := a.shell()

			var w io.Writer = cmd.OutOrStdout()
			var f *os.File
			if output != "-" {
				f, err = os.Create(output)
				if err != nil {
					return err
				}
				w = f
			}

			if format == "png" {
				err = shell.ExportImage(cmd.Context(), w, args[0])
			} else {
				err = shell.ExportTable(cmd.Context(), w, args[0])
			}
			if f != nil {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					os.Remove(output)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "png", "png or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}
