package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"repair-dashboard/internal/assistant"
	"repair-dashboard/internal/errors"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/services"
	"repair-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	analytics *services.Analytics
	chats     *assistant.Sessions
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, chats *assistant.Sessions, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		chats:     chats,
		logger:    logger,
	}
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	err := c.Render(ctx, &buf)
	return buf.String(), err
}

// HandleDashboard re-renders the stat cards and chart panels for the filter
// signals sent by the page, and pushes the raw chart series as signals.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var signals filterSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid signals"), observability.GetRequestID(r.Context()))
		return
	}
	params, err := signals.params()
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	records := services.Filter(h.analytics.Records(), params)
	stats := h.analytics.Aggregator().Compute(records)
	charts := services.Charts(records)
	renderer := h.analytics.Renderer()

	sse := datastar.NewSSE(w, r)

	cards, err := renderComponent(r.Context(), templates.StatCards(
		templates.NewCardsView(services.Overview(records), stats, renderer)))
	if err != nil {
		h.logger.Error("render stat cards", "error", err)
		return
	}
	sse.PatchElements(cards)

	panels, err := renderComponent(r.Context(), templates.Charts(templates.NewChartsView(stats, charts, renderer)))
	if err != nil {
		h.logger.Error("render charts", "error", err)
		return
	}
	sse.PatchElements(panels)

	chartSignals, err := json.Marshal(map[string]any{
		"monthlyData":       stats.ByMonth,
		"quarterlyData":     stats.ByQuarter,
		"repairTypeData":    stats.ByRepairType,
		"workshopData":      stats.ByWorkshop,
		"laborMaterialData": charts.LaborMaterialByMonth,
		"rejectionData":     charts.Rejection,
		"recordCount":       stats.TotalRecords,
	})
	if err != nil {
		h.logger.Error("marshal chart signals", "error", err)
		return
	}
	sse.PatchSignals(chartSignals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

type chatSignals struct {
	Message string `json:"message"`
}

// HandleChat shows the question right away, then the full conversation once
// the reply has arrived.
func (h *SSEHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var signals chatSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid signals"), observability.GetRequestID(r.Context()))
		return
	}
	text := strings.TrimSpace(signals.Message)

	sse := datastar.NewSSE(w, r)
	if text == "" {
		sse.PatchSignals([]byte(`{"sending": false}`))
		return
	}

	conv := h.chats.Get(sessionKey(r))
	pending := append(conv.History(), assistant.Message{Role: assistant.RoleUser, Content: text})
	if err := h.patchChat(r.Context(), sse, pending); err != nil {
		return
	}
	sse.PatchSignals([]byte(`{"message": ""}`))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	reply := conv.SendMessage(r.Context(), text, h.analytics.Records())
	if err := h.patchChat(r.Context(), sse, transcript(conv.History(), text, reply)); err != nil {
		return
	}
	sse.PatchSignals([]byte(`{"sending": false}`))

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) patchChat(ctx context.Context, sse *datastar.ServerSentEventGenerator, history []assistant.Message) error {
	html, err := renderComponent(ctx, templates.ChatMessages(history))
	if err != nil {
		h.logger.Error("render chat messages", "error", err)
		return err
	}
	return sse.PatchElements(html)
}

// transcript is the conversation to display after a send. Replies that are
// not kept in history (missing key, rate limit, failures) are still shown.
func transcript(history []assistant.Message, text, reply string) []assistant.Message {
	if n := len(history); n > 0 && history[n-1].Role == assistant.RoleAssistant && history[n-1].Content == reply {
		return history
	}
	if n := len(history); n == 0 || history[n-1].Role != assistant.RoleUser || history[n-1].Content != text {
		history = append(history, assistant.Message{Role: assistant.RoleUser, Content: text})
	}
	return append(history, assistant.Message{Role: assistant.RoleAssistant, Content: reply})
}
