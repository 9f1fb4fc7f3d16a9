package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/netn10/learn-romanian/internal/config"
	"github.com/netn10/learn-romanian/internal/storage"
	"github.com/netn10/learn-romanian/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	syncer    *sync.Syncer
	logger    *logrus.Logger
	cfg       config.ServerConfig
	importCfg config.ImportConfig
	validate  *validator.Validate

	router    *mux.Router
	accessLog io.WriteCloser
	handler   http.Handler
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, syncer *sync.Syncer, logger *logrus.Logger, cfg *config.Config) *Server {
	s := &Server{
		db:        db,
		syncer:    syncer,
		logger:    logger,
		cfg:       cfg.Server,
		importCfg: cfg.Import,
		validate:  newValidator(),
		router:    mux.NewRouter(),
		accessLog: logger.WriterLevel(logrus.InfoLevel),
	}
	s.routes()

	cors := handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedOrigins(s.cfg.AllowedOrigins),
	)
	s.handler = cors(handlers.CombinedLoggingHandler(s.accessLog, recoverAndLog(logger, s.router)))
	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	api.HandleFunc("/cards", s.handleListCards()).Methods(http.MethodGet)
	api.HandleFunc("/cards", s.handleCreateCard()).Methods(http.MethodPost)
	api.HandleFunc("/cards/random", s.handleRandomCard()).Methods(http.MethodGet)
	api.HandleFunc("/cards/parse", s.handleParseCards()).Methods(http.MethodPost)
	api.HandleFunc("/cards/bulk", s.handleBulkCards()).Methods(http.MethodPost)
	api.HandleFunc("/cards/{id}", s.handleGetCard()).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id}", s.handleUpdateCard()).Methods(http.MethodPut)
	api.HandleFunc("/cards/{id}", s.handleDeleteCard()).Methods(http.MethodDelete)

	api.HandleFunc("/tags", s.handleListTags()).Methods(http.MethodGet)

	api.HandleFunc("/sources", s.handleListSources()).Methods(http.MethodGet)
	api.HandleFunc("/sources", s.handleAddSource()).Methods(http.MethodPost)
	api.HandleFunc("/sources/{id}", s.handleDeleteSource()).Methods(http.MethodDelete)
	api.HandleFunc("/sync", s.handlePostSync()).Methods(http.MethodPost)
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.Addr).Info("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Close releases the access log writer.
func (s *Server) Close() error {
	return s.accessLog.Close()
}

// handleHealth pings the database.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	}
}
