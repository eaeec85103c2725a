package main

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/polar-layers/internal/display"
	"github.com/couchcryptid/polar-layers/internal/display/tui"
)

func newViewCmd() *cobra.Command {
	var exportDir, logFile string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse cached layers in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The viewer owns the terminal, so logs go to a file or nowhere.
			var logs io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				logs = f
			}
			a, err := newAppLogging(logs)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			shell := a.shell()
			watcher, err := display.NewWatcher(a.cfg.CacheDir, shell, a.logger)
			if err != nil {
				return err
			}
			go watcher.Run(ctx)

			_, err = tea.NewProgram(
				tui.New(ctx, shell, exportDir),
				tea.WithAltScreen(),
				tea.WithContext(ctx),
			).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "directory for PNG and CSV exports")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")
	return cmd
}
