package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/httpapi"
	"github.com/joelkehle/basin-analysis/internal/telemetry"
)

const shutdownGrace = 15 * time.Second

func serveCommand(a *app) *cobra.Command {
	var runTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			shutdownTracing, err := telemetry.InitTracing(ctx, a.cfg.Telemetry.OTLPEndpoint, a.cfg.Telemetry.ServiceName)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := shutdownTracing(sctx); err != nil {
					a.logger.Warn("trace shutdown", zap.Error(err))
				}
			}()

			metrics, err := telemetry.NewDefaultMetrics()
			if err != nil {
				return err
			}
			pipeline, err := a.newPipeline(metrics)
			if err != nil {
				return err
			}
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			handler := httpapi.NewServer(httpapi.Options{
				Analyzer:      pipeline,
				Archive:       store,
				Metrics:       metrics,
				Logger:        a.logger,
				RunTimeout:    runTimeout,
				MaxConcurrent: a.cfg.Batch.Concurrency,
			})
			srv := &http.Server{
				Addr:              a.cfg.HTTP.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				a.logger.Info("basin-analysis listening", zap.String("addr", srv.Addr), zap.String("archive", a.cfg.Archive.Path))
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", 5*time.Minute, "Upper bound on one synchronous analysis")
	return cmd
}
