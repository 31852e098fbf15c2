// Command davserver runs the CalDAV/CardDAV server: it wires config,
// postgres storage (applying embedded migrations on startup), HTTP
// Basic authentication, the protocol handler, and the HTTP edge, then
// serves until SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonroyaalmerol/go-davcore/internal/auth"
	"github.com/sonroyaalmerol/go-davcore/internal/config"
	"github.com/sonroyaalmerol/go-davcore/internal/dav"
	"github.com/sonroyaalmerol/go-davcore/internal/logging"
	"github.com/sonroyaalmerol/go-davcore/internal/router"
	"github.com/sonroyaalmerol/go-davcore/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		println("config:", err.Error())
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	if err := postgres.ApplyMigrations(cfg.Storage.PostgresURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := postgres.New(ctx, cfg.Storage.PostgresURL, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("storage init failed")
	}
	defer store.Close()

	authn := auth.New(store)
	handler := dav.New(store, store, logger, cfg.DAVPrefix(), cfg.Recur.MaxOccurrences)

	mux := router.New(cfg, handler, authn, logger)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.RequestTimeout,
		WriteTimeout:      config.RequestTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped with error")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("bye")
}
