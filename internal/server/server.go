package server

import (
	"context"
	"errors"
	"net/http"

	"floorpulse-backend/internal/config"
	"golang.org/x/sync/errgroup"
	"log/slog"
)

// Start runs the HTTP server until ctx is done, then shuts it down
// gracefully. beforeShutdown hooks run first, in order; they are where
// pollers stop and event streams are closed so open SSE connections can drain.
func Start(ctx context.Context, cfg config.Config, router http.Handler, log *slog.Logger, beforeShutdown ...func()) error {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		for _, hook := range beforeShutdown {
			hook()
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
