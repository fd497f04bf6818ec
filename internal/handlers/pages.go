package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"repair-dashboard/internal/assistant"
	"repair-dashboard/internal/auth"
	"repair-dashboard/internal/models"
	"repair-dashboard/internal/services"
	"repair-dashboard/internal/store"
	"repair-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

// PageHandlers serve the HTML pages and the login form.
type PageHandlers struct {
	auth      *auth.Manager
	analytics *services.Analytics
	store     *store.Store
	chats     *assistant.Sessions
	logger    *slog.Logger
}

func NewPageHandlers(authMgr *auth.Manager, analytics *services.Analytics, st *store.Store, chats *assistant.Sessions, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		auth:      authMgr,
		analytics: analytics,
		store:     st,
		chats:     chats,
		logger:    logger,
	}
}

func (h *PageHandlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.auth.SessionFromRequest(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, templates.Login("", ""))
}

func (h *PageHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, templates.Login("", "Invalid form"))
		return
	}
	username := r.PostFormValue("username")

	s, err := h.auth.Login(username, r.PostFormValue("password"))
	if err != nil {
		h.render(w, r, http.StatusUnauthorized, templates.Login(username, "Wrong username or password"))
		return
	}
	h.auth.SetCookie(w, s)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.auth.SessionFromRequest(r); ok {
		h.auth.Logout(s.ID)
	}
	h.auth.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	view := templates.DashboardView{
		Options: h.analytics.FilterOptions(),
	}
	if s, ok := auth.SessionFrom(r.Context()); ok {
		view.Username = s.Username
	}
	view.Source, view.SourceID = h.analytics.Source()
	view.AssistantReady = h.chats.Get(sessionKey(r)).IsConfigured()

	imports, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list imports", "error", err)
	}
	view.Imports = imports

	var all models.FilterParams
	stats := h.analytics.Statistics(all)
	renderer := h.analytics.Renderer()
	view.Cards = templates.NewCardsView(h.analytics.Overview(all), stats, renderer)
	view.Charts = templates.NewChartsView(stats, h.analytics.Charts(all), renderer)

	w.Header().Set("Cache-Control", "no-store")
	h.render(w, r, http.StatusOK, templates.Dashboard(view))
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(ctx, w); err != nil {
		h.logger.Error("render page", "error", err, "path", r.URL.Path)
	}
}
