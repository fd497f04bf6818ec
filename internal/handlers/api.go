package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"repair-dashboard/internal/assistant"
	"repair-dashboard/internal/errors"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/services"
)

const version = "1.0.0"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *APIHandlers) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	params, err := parseFilterParams(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.Statistics(params), noStore)
}

type summaryResponse struct {
	Summary string                   `json:"summary"`
	Records int                      `json:"records"`
	Tokens  assistant.TokenEstimate `json:"tokens"`
}

// HandleSummary returns the prompt text the assistant would receive for the
// filtered records, with its estimated token cost.
func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	params, err := parseFilterParams(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	records := services.Filter(h.analytics.Records(), params)
	summary := h.analytics.Summarize(records)
	errors.WriteSuccessWithHeaders(w, summaryResponse{
		Summary: summary,
		Records: len(records),
		Tokens:  assistant.EstimateTokens(summary, len(records)),
	}, noStore)
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	params, err := parseFilterParams(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.Overview(params), noStore)
}

func (h *APIHandlers) HandleCharts(w http.ResponseWriter, r *http.Request) {
	params, err := parseFilterParams(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.Charts(params), noStore)
}

func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.FilterOptions(), noStore)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.analytics.Stats()

	errors.WriteSuccess(w, stats)
}

// The dataset can change with any import, so responses are never cached.
var noStore = map[string]string{
	"Cache-Control": "no-store",
}
