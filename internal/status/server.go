// Package status serves a read-only HTTP view of the running bot: health,
// open positions and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/types"
)

// Source is what the server reports on. Both funcs must be safe to call from
// any goroutine.
type Source struct {
	Positions func() []types.Position
	State     func() string
}

type Server struct {
	router *mux.Router
	server *http.Server
	src    Source
	runID  string
}

func NewServer(addr string, src Source) *Server {
	s := &Server{
		router: mux.NewRouter(),
		src:    src,
		runID:  uuid.NewString(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLoggingMiddleware)
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/positions", s.positions).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves in the background until Shutdown.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Info(ctx, "Status server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Status server stopped", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	state := "UNKNOWN"
	if s.src.State != nil {
		state = s.src.State()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  state,
		"run_id": s.runID,
	})
}

func (s *Server) positions(w http.ResponseWriter, r *http.Request) {
	out := []types.Position{}
	if s.src.Positions != nil {
		out = append(out, s.src.Positions()...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug(r.Context(), "Status request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
