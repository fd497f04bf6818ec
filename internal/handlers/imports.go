package handlers

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"repair-dashboard/internal/errors"
	"repair-dashboard/internal/models"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/refresh"
	"repair-dashboard/internal/sheets"
	"repair-dashboard/internal/store"
)

const maxBodyBytes = 1 << 20

// ImportHandlers manage the import history and choose which imports feed
// the dashboard.
type ImportHandlers struct {
	importer *sheets.Importer
	store    *store.Store
	loader   *refresh.Loader
	logger   *slog.Logger
}

func NewImportHandlers(importer *sheets.Importer, st *store.Store, loader *refresh.Loader, logger *slog.Logger) *ImportHandlers {
	return &ImportHandlers{
		importer: importer,
		store:    st,
		loader:   loader,
		logger:   logger,
	}
}

type importRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	// SheetURL is the name the dashboard's datastar signal uses.
	SheetURL string `json:"sheet_url"`
}

func (h *ImportHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	imports, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to list imports"))
		return
	}
	errors.WriteSuccessWithHeaders(w, imports, noStore)
}

func (h *ImportHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		url = strings.TrimSpace(req.SheetURL)
	}
	if url == "" {
		h.fail(w, r, errors.Validation("url is required"))
		return
	}

	rec, err := h.importer.Import(r.Context(), url, strings.TrimSpace(req.Name))
	switch {
	case stderrors.Is(err, sheets.ErrInvalidURL):
		h.fail(w, r, errors.ValidationWrap(err, "invalid Google Sheets URL"))
		return
	case stderrors.Is(err, sheets.ErrNotAccessible):
		h.fail(w, r, errors.Upstream(err, err.Error()))
		return
	case err != nil:
		h.fail(w, r, errors.Upstream(err, "import failed"))
		return
	}

	h.loadActive(r)
	errors.WriteSuccess(w, withoutData(*rec))
}

func (h *ImportHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.store.Delete(r.Context(), id)
	if stderrors.Is(err, store.ErrNotFound) {
		h.fail(w, r, errors.NotFoundWrap(err, "import not found"))
		return
	}
	if err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to delete import"))
		return
	}

	if err := h.loader.Forget(r.Context(), id); err != nil {
		h.logger.Error("failed to reload dataset",
			"error", err,
			"request_id", observability.GetRequestID(r.Context()),
		)
	}
	errors.WriteSuccess(w, map[string]string{"deleted": id})
}

func (h *ImportHandlers) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.store.SetActive(r.Context(), id)
	if stderrors.Is(err, store.ErrNotFound) {
		h.fail(w, r, errors.NotFoundWrap(err, "import not found"))
		return
	}
	if err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to activate import"))
		return
	}

	h.loadActive(r)
	errors.WriteSuccess(w, map[string]string{"active": id})
}

type selectionRequest struct {
	IDs []string `json:"ids"`
}

// HandleSelection shows several imports at once, merged in request order.
func (h *ImportHandlers) HandleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		h.fail(w, r, errors.Validation("ids must list at least one import"))
		return
	}

	n, err := h.loader.Select(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to merge imports"))
		return
	}
	errors.WriteSuccess(w, map[string]any{"ids": req.IDs, "records": n})
}

func (h *ImportHandlers) loadActive(r *http.Request) {
	if err := h.loader.LoadActive(r.Context()); err != nil {
		h.logger.Error("failed to reload dataset",
			"error", err,
			"request_id", observability.GetRequestID(r.Context()),
		)
	}
}

func (h *ImportHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func withoutData(rec models.ImportRecord) models.ImportRecord {
	rec.Data = nil
	return rec
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.BadRequestWrap(err, "invalid JSON body")
	}
	return nil
}
