package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/polar-layers/internal/adapter/http"
	"github.com/couchcryptid/polar-layers/internal/display"
)

// readiness passes only when every checker passes.
type readiness []httpadapter.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func newServeCmd() *cobra.Command {
	var build bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cached layers over HTTP",
		Long: `Serve the layer cache on HTTP_ADDR. With --build a full build runs in the
background first and /readyz reports not ready until it finishes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			shell := a.shell()
			checks := readiness{shell}

			watcher, err := display.NewWatcher(a.cfg.CacheDir, shell, a.logger)
			if err != nil {
				return err
			}
			go watcher.Run(ctx)

			closeFn := func() error { return nil }
			if build {
				p, c, err := a.pipeline()
				if err != nil {
					return err
				}
				closeFn = c
				checks = append(checks, p)
				go func() {
					if _, err := p.Run(ctx); err != nil {
						a.logger.Error("build error", "error", err)
					}
				}()
			}

			srv := httpadapter.NewServer(a.cfg.HTTPAddr, shell, checks, a.metrics, a.logger)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("http server error", "error", err)
				}
			}()

			<-ctx.Done()
			a.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}
			if err := closeFn(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&build, "build", false, "run a full build in the background on startup")
	return cmd
}
