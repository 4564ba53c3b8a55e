package server

import (
	"log/slog"
	"net/http"

	"superstore-dashboard/internal/handlers"
	"superstore-dashboard/internal/services"
	"superstore-dashboard/internal/ui/format"
)

type Server struct {
	dashboard   *services.Dashboard
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

// Options carries the non-service dependencies of the route table.
type Options struct {
	Title     string
	TableRows int
	Format    *format.Formatter
	// Metrics serves the Prometheus exposition; /metrics is not routed
	// when nil.
	Metrics http.Handler
}

func NewServer(dashboard *services.Dashboard, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		dashboard:   dashboard,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(dashboard, logger),
		sseHandlers: handlers.NewSSEHandlers(dashboard, logger, opts.Format, opts.TableRows),
	}
	s.setupRoutes(opts)
	return s
}

func (s *Server) setupRoutes(opts Options) {
	page := handlers.NewPageHandler(s.dashboard, s.logger, opts.Format, opts.Title, opts.TableRows)

	// Dashboard routes
	s.mux.Handle("GET /{$}", page)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/filters", s.apiHandlers.HandleFilters)
	s.mux.HandleFunc("GET /api/metrics", s.apiHandlers.HandleMetrics)
	s.mux.HandleFunc("GET /api/records", s.apiHandlers.HandleRecords)
	s.mux.HandleFunc("GET /api/export", s.apiHandlers.HandleExport)
	s.mux.HandleFunc("GET /charts/{name}", s.apiHandlers.HandleChart)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/dashboard", s.sseHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /sse/filters", s.sseHandlers.HandleFilters)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
