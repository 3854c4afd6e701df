package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/reelbot/catalog"
	"github.com/onnwee/reelbot/telemetry"
)

const defaultCatalogLimit = 50

// HandleAdminCatalog returns the catalog size, pending deletions and the first titles.
func (h *Handlers) HandleAdminCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := defaultCatalogLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			limit = n
		}
	}
	titles, err := h.catalog.ListTitles(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total := len(titles)
	if limit < total {
		titles = titles[:limit]
	}
	if titles == nil {
		titles = []catalog.Title{}
	}
	pending := 0
	if h.retention != nil {
		pending = h.retention.Pending()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":             total,
		"pending_deletions": pending,
		"titles":            titles,
	})
}

// HandleAdminReindex re-scans the source channel history into the catalog.
func (h *Handlers) HandleAdminReindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := h.indexer.Refresh(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("admin reindex", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "result": res})
}
