package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"repair-dashboard/internal/assistant"
	"repair-dashboard/internal/auth"
	"repair-dashboard/internal/errors"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/services"
)

const anonymousSession = "anonymous"

type ChatHandlers struct {
	analytics *services.Analytics
	chats     *assistant.Sessions
	logger    *slog.Logger
}

func NewChatHandlers(analytics *services.Analytics, chats *assistant.Sessions, logger *slog.Logger) *ChatHandlers {
	return &ChatHandlers{
		analytics: analytics,
		chats:     chats,
		logger:    logger,
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply   string `json:"reply"`
	History int    `json:"history"`
}

// HandleChat sends one question. Assistant failures are part of the reply
// text, so the response is a success whenever the request itself was valid.
func (h *ChatHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		errors.WriteError(w, h.logger, errors.Validation("message is required"), observability.GetRequestID(r.Context()))
		return
	}

	conv := h.chats.Get(sessionKey(r))
	reply := conv.SendMessage(r.Context(), text, h.analytics.Records())
	errors.WriteSuccess(w, chatResponse{Reply: reply, History: len(conv.History())})
}

func (h *ChatHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.chats.Get(sessionKey(r)).Reset()
	errors.WriteSuccess(w, map[string]bool{"reset": true})
}

type chatStatus struct {
	Configured bool                    `json:"configured"`
	History    int                     `json:"history"`
	Records    int                     `json:"records"`
	Tokens     assistant.TokenEstimate `json:"tokens"`
}

func (h *ChatHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	conv := h.chats.Get(sessionKey(r))
	records := h.analytics.Records()
	errors.WriteSuccessWithHeaders(w, chatStatus{
		Configured: conv.IsConfigured(),
		History:    len(conv.History()),
		Records:    len(records),
		Tokens:     conv.EstimateTokens(records),
	}, noStore)
}

func sessionKey(r *http.Request) string {
	if s, ok := auth.SessionFrom(r.Context()); ok {
		return s.ID
	}
	return anonymousSession
}
