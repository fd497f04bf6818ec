package server

import (
	"log/slog"
	"net/http"

	"repair-dashboard/internal/assistant"
	"repair-dashboard/internal/auth"
	"repair-dashboard/internal/handlers"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/refresh"
	"repair-dashboard/internal/services"
	"repair-dashboard/internal/sheets"
	"repair-dashboard/internal/store"
)

// Dependencies are the services the routes are served from.
type Dependencies struct {
	Analytics *services.Analytics
	Store     *store.Store
	Importer  *sheets.Importer
	Loader    *refresh.Loader
	Chats     *assistant.Sessions
	Auth      *auth.Manager
	Logger    *slog.Logger
}

type Server struct {
	mux            *http.ServeMux
	logger         *slog.Logger
	requireLogin   func(http.Handler) http.Handler
	apiHandlers    *handlers.APIHandlers
	importHandlers *handlers.ImportHandlers
	chatHandlers   *handlers.ChatHandlers
	pageHandlers   *handlers.PageHandlers
	sseHandlers    *handlers.SSEHandlers
}

func NewServer(deps Dependencies) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		logger:         deps.Logger,
		requireLogin:   deps.Auth.Require(deps.Logger),
		apiHandlers:    handlers.NewAPIHandlers(deps.Analytics, deps.Logger),
		importHandlers: handlers.NewImportHandlers(deps.Importer, deps.Store, deps.Loader, deps.Logger),
		chatHandlers:   handlers.NewChatHandlers(deps.Analytics, deps.Chats, deps.Logger),
		pageHandlers:   handlers.NewPageHandlers(deps.Auth, deps.Analytics, deps.Store, deps.Chats, deps.Logger),
		sseHandlers:    handlers.NewSSEHandlers(deps.Analytics, deps.Chats, deps.Logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.requireLogin(h)
}

func (s *Server) setupRoutes() {
	// Public routes
	s.mux.HandleFunc("GET /login", s.pageHandlers.HandleLoginPage)
	s.mux.HandleFunc("POST /login", s.pageHandlers.HandleLogin)
	s.mux.HandleFunc("POST /logout", s.pageHandlers.HandleLogout)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.Handle("GET /metrics", observability.MetricsHandler())

	// Dashboard routes
	s.mux.Handle("GET /{$}", s.protected(s.pageHandlers.HandleDashboard))
	s.mux.Handle("GET /admin/stats", s.protected(s.apiHandlers.HandleStats))

	// REST API endpoints
	s.mux.Handle("GET /api/statistics", s.protected(s.apiHandlers.HandleStatistics))
	s.mux.Handle("GET /api/summary", s.protected(s.apiHandlers.HandleSummary))
	s.mux.Handle("GET /api/overview", s.protected(s.apiHandlers.HandleOverview))
	s.mux.Handle("GET /api/charts", s.protected(s.apiHandlers.HandleCharts))
	s.mux.Handle("GET /api/filters", s.protected(s.apiHandlers.HandleFilters))

	s.mux.Handle("GET /api/imports", s.protected(s.importHandlers.HandleList))
	s.mux.Handle("POST /api/imports", s.protected(s.importHandlers.HandleCreate))
	s.mux.Handle("DELETE /api/imports/{id}", s.protected(s.importHandlers.HandleDelete))
	s.mux.Handle("POST /api/imports/{id}/activate", s.protected(s.importHandlers.HandleActivate))
	s.mux.Handle("POST /api/selection", s.protected(s.importHandlers.HandleSelection))

	s.mux.Handle("POST /api/chat", s.protected(s.chatHandlers.HandleChat))
	s.mux.Handle("POST /api/chat/reset", s.protected(s.chatHandlers.HandleReset))
	s.mux.Handle("GET /api/chat/status", s.protected(s.chatHandlers.HandleStatus))

	// Datastar SSE endpoints
	s.mux.Handle("GET /sse/dashboard", s.protected(s.sseHandlers.HandleDashboard))
	s.mux.Handle("POST /sse/chat", s.protected(s.sseHandlers.HandleChat))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
