package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eidos-ontology/eidos/internal/api/handler"
	"github.com/eidos-ontology/eidos/internal/api/middleware"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type HTTPServer struct {
	server *http.Server
	config *ServerConfig
	logger *logger.Logger
}

func NewHTTPServer(config *ServerConfig,
	ontologyHandler *handler.OntologyHandler,
	mrHandler *handler.MergeRequestHandler,
	logger *logger.Logger) *HTTPServer {

	router := setupRouter(ontologyHandler, mrHandler, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &HTTPServer{
		server: server,
		config: config,
		logger: logger.Component("http"),
	}
}

func (s *HTTPServer) Start(_ context.Context) error {
	s.logger.Info("starting http server", "addr", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("http server shutdown failed", "error", err)
		return err
	}

	s.logger.Info("http server stopped")
	return nil
}

func setupRouter(
	ontologyHandler *handler.OntologyHandler,
	mrHandler *handler.MergeRequestHandler,
	logger *logger.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Security())
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})

	r.Mount("/ontologies", ontologyHandler.Routes())
	r.Mount("/merge-requests", mrHandler.Routes())

	return r
}
