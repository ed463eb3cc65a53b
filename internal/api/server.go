package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"auctionfactory/internal/factory"
	"auctionfactory/internal/metrics"
	"auctionfactory/internal/storage"
)

// Server represents the HTTP API server
// Serves the factory operations, health checks and Prometheus metrics
type Server struct {
	httpServer *http.Server
	router     chi.Router
	factory    *factory.Factory
	ledger     storage.Ledger
	port       int
}

// NewServer creates a new API server instance
// The ledger is only used for health checks; all state goes through the factory
func NewServer(port int, f *factory.Factory, ledger storage.Ledger) *Server {
	router := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:  router,
		factory: f,
		ledger:  ledger,
		port:    port,
	}

	// Register all HTTP routes
	s.registerRoutes()

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Use(requestID)
	s.router.Use(countRequests)
	s.router.Use(middleware.Recoverer)

	// Core endpoints
	s.router.Get("/", s.handleIndex)
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.handleMetrics())

	// Admin
	s.router.Route("/factory", func(r chi.Router) {
		r.Get("/", s.handleFactoryInfo)
		r.Post("/initialize", s.handleInitialize)
		r.Post("/pause", s.handlePause)
		r.Post("/unpause", s.handleUnpause)
	})

	// Registry and deployment
	s.router.Route("/auctions", func(r chi.Router) {
		r.Get("/", s.handleListAuctions)
		r.Post("/", s.handleCreateAuction)
		r.Get("/count", s.handleAuctionCount)
		r.Post("/predict", s.handlePredict)
		r.Get("/{id}", s.handleGetAuction)
	})

	// Raw ABI calldata
	s.router.Post("/call", s.handleCall)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
	})
}

// Start starts the HTTP server in a goroutine
// Returns immediately after starting the server
func (s *Server) Start() error {
	go func() {
		slog.Info("API server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/factory", "/auctions", "/call"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}

type requestIDKey struct{}

// requestID tags each request with an id, echoed in X-Request-ID and in
// error bodies
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFrom returns the id assigned by the requestID middleware
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
