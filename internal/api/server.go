// Package api exposes the administrative HTTP interface: dedup runs, group
// previews, batch restores and record ingestion.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/ingest"
	"github.com/Nomadcxx/animerge/internal/logging"
	"github.com/Nomadcxx/animerge/internal/merge"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// MaxIngestBytes bounds the size of an ingest request body.
const MaxIngestBytes = 32 << 20

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	// Token, when non-empty, is required as a bearer token on /api/v1.
	Token string
}

// Server implements the API
type Server struct {
	db       *database.AnimeDB
	runner   *merge.Runner
	ingester *ingest.Ingester
	logger   *logging.Logger
	opts     Options

	// runMu serializes operations that write to the store.
	runMu sync.Mutex
}

// NewServer creates a new API server
func NewServer(db *database.AnimeDB, runner *merge.Runner, ingester *ingest.Ingester, logger *logging.Logger, opts Options) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		db:       db,
		runner:   runner,
		ingester: ingester,
		logger:   logger,
		opts:     opts,
	}
}

var _ ServerInterface = (*Server)(nil)

// Handler returns the HTTP handler with CORS and API routes
func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.GetHealth)

	// Mount API routes at /api/v1
	r.Mount("/api/v1", s.apiRouter())

	return r
}

// apiRouter returns a router with API routes
func (s *Server) apiRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	r.Use(s.authMiddleware)

	HandlerFromMux(s, r)

	return r
}

// authMiddleware checks the bearer token when one is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token == "" || strings.HasSuffix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("api", "Request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("status", ww.Status()),
			logging.F("bytes", ww.BytesWritten()),
			logging.F("duration", time.Since(start).String()),
			logging.F("request_id", middleware.GetReqID(r.Context())))
	})
}
