package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"asyncsql/internal/engine"
	"asyncsql/internal/infra/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// QueryService is the engine surface served over HTTP.
type QueryService interface {
	Stats() engine.Stats
	Submit(query string, save bool) (int64, error)
	ListDoneIDs() []int64
	FetchAndRelease(id int64) (engine.Fetched, error)
	FetchField(h int) (string, bool, error)
	FetchRow(h int) ([]*string, bool, error)
	FreeResult(h int) error
}

// Server is the admin HTTP surface: health, metrics and query inspection.
type Server struct {
	svc    QueryService
	apiKey string
	log    *zerolog.Logger
	server *http.Server
}

// NewServer builds the admin server for port. Port 0 picks a free port.
func NewServer(svc QueryService, apiKey string, port int, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Server{svc: svc, apiKey: apiKey, log: logging.Component(logger, "admin")}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the router. /api/v1 is behind bearer auth when an API key is set.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/stats", s.handleStats)
		r.Post("/queries", s.handleSubmit)
		r.Get("/queries/done", s.handleListDone)
		r.Get("/queries/{id}", s.handleFetch)
	})
	return r
}

// Start serves until Shutdown. It returns nil after a clean shutdown, including
// one that happened before Start was called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("admin server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
