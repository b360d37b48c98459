package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmswift/authbroker/internal/capability"
	"github.com/cmswift/authbroker/internal/config"
	"github.com/cmswift/authbroker/internal/flow"
	"github.com/cmswift/authbroker/internal/session"
	"github.com/cmswift/authbroker/internal/state"
)

type Server struct {
	cfg        config.Config
	store      state.Store
	session    *session.Store
	flows      *flow.Orchestrator
	discovery  *capability.Discovery
	logger     *slog.Logger
	httpServer *http.Server
}

func New(cfg config.Config, store state.Store, sess *session.Store, flows *flow.Orchestrator, discovery *capability.Discovery, logger *slog.Logger) (*Server, error) {
	return &Server{
		cfg:       cfg,
		store:     store,
		session:   sess,
		flows:     flows,
		discovery: discovery,
		logger:    logger,
	}, nil
}

func (s *Server) Start() error {
	router, err := s.setupRoutes()
	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"host", s.cfg.Server.Host,
			"port", s.cfg.Server.Port,
			"base_url", s.cfg.Server.BaseURL,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig)
		return s.Shutdown()
	}
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing state store", "error", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}
