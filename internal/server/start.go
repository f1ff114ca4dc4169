package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Start runs the server until an interrupt or terminate signal arrives,
// then shuts everything down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Engine.Start(ctx); err != nil {
		return err
	}

	if s.Cfg.RulesScript != "" {
		if err := s.Rules.Watch(ctx, s.Cfg.RulesScript); err != nil {
			// Bad house rules fall back to the defaults; the server still runs.
			slog.Warn("Failed to load rules script, using defaults", "path", s.Cfg.RulesScript, "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "addr", s.Cfg.Addr)
		if err := s.E.Start(s.Cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})
	return g.Wait()
}

// shutdown drains the HTTP server and closes the bus and database.
func (s *Server) shutdown() error {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Broker.Close(); err != nil {
		slog.Warn("Broker close failed", "error", err)
	}
	if s.DB != nil {
		if err := s.DB.Close(ctx); err != nil {
			slog.Warn("Database close failed", "error", err)
		}
	}
	return s.E.Shutdown(ctx)
}
