package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	shutdownGrace time.Duration
	purgeEvery    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync once and serve the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		log := a.Log

		ms, st := a.Directory.LoadAll(ctx)
		ev := log.Info().Int("merchants", len(ms)).Bool("online", st.Online).Str("mode", st.Mode)
		if st.Error != "" {
			ev = ev.Str("sync_error", st.Error)
		}
		ev.Msg("initial load")

		go a.PurgeIdempotency(ctx, purgeEvery)

		cfg := a.Config
		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           a.Router(),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	},
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownGrace, "shutdown-grace", 10*time.Second, "time allowed for in-flight requests on shutdown")
	serveCmd.Flags().DurationVar(&purgeEvery, "purge-every", time.Hour, "interval between idempotency ledger purges")
}
