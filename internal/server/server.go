package server

import (
	"log/slog"
	"net/http"

	"advisor-dashboard/internal/handlers"
	"advisor-dashboard/internal/services"
)

type Server struct {
	dashboard   *services.Dashboard
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(dashboard *services.Dashboard, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		dashboard:   dashboard,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(dashboard, logger),
		sseHandlers: handlers.NewSSEHandlers(dashboard, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/overview", s.apiHandlers.HandleOverview)
	s.mux.HandleFunc("GET /api/orders", s.apiHandlers.HandleOrders)
	s.mux.HandleFunc("GET /api/orders/advisors/{name}", s.apiHandlers.HandleAdvisorDetail)
	s.mux.HandleFunc("GET /api/customers", s.apiHandlers.HandleCustomers)
	s.mux.HandleFunc("GET /api/strategy", s.apiHandlers.HandleStrategy)
	s.mux.HandleFunc("GET /api/filters", s.apiHandlers.HandleFilters)

	// Dataset management
	s.mux.HandleFunc("GET /api/datasets", s.apiHandlers.HandleDatasets)
	s.mux.HandleFunc("POST /api/datasets/{kind}", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("DELETE /api/datasets/{kind}", s.apiHandlers.HandleClearDataset)
	s.mux.HandleFunc("DELETE /api/datasets", s.apiHandlers.HandleReset)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/overview", s.sseHandlers.HandleOverview)
	s.mux.HandleFunc("GET /sse/orders", s.sseHandlers.HandleOrders)
	s.mux.HandleFunc("GET /sse/customers", s.sseHandlers.HandleCustomers)
	s.mux.HandleFunc("GET /sse/strategy", s.sseHandlers.HandleStrategy)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
