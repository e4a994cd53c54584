// Package rest implements the HTTP API: auth, event intake, the metadata
// query surface, and per-user object operations.
package rest

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/logging"
	"github.com/dmitrijs2005/ingestor/internal/server/config"
	"github.com/dmitrijs2005/ingestor/internal/server/ingest"
	"github.com/dmitrijs2005/ingestor/internal/server/query"
	"github.com/dmitrijs2005/ingestor/internal/server/services"
)

// Server wires the HTTP handlers to the underlying services.
type Server struct {
	httpServer     *http.Server
	users          *services.UserService
	files          *services.FileService
	query          *query.Service
	pool           *ingest.Pool
	db             *sql.DB
	jwtSecret      []byte
	maxUploadBytes int64
	logger         logging.Logger
}

func NewServer(cfg *config.Config, users *services.UserService, files *services.FileService,
	q *query.Service, pool *ingest.Pool, db *sql.DB, logger logging.Logger) *Server {

	s := &Server{
		users:          users,
		files:          files,
		query:          q,
		pool:           pool,
		db:             db,
		jwtSecret:      []byte(cfg.SecretKey),
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger.With("module", "rest"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.EndpointAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("POST /auth/login", s.login)

	mux.HandleFunc("POST /events", s.ingestEvents)

	mux.HandleFunc("GET /files", s.listRecords)
	mux.HandleFunc("GET /files/{id...}", s.getRecord)

	mux.Handle("POST /user/files", s.withAuth(s.uploadFile))
	mux.Handle("GET /user/files", s.withAuth(s.listFiles))
	mux.Handle("GET /user/files/{key...}", s.withAuth(s.downloadFile))
	mux.Handle("DELETE /user/files/{key...}", s.withAuth(s.deleteFile))

	mux.HandleFunc("GET /healthz", s.healthz)

	return s.withRequestID(mux)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
