package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/inventory"
	"github.com/tphummel/lab_inventory/internal/models"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	Store   *inventory.Store
	DB      *db.DB
	Version string
	Commit  string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// audit records a served lookup. Failures are logged and never affect the
// response.
func (h *Handler) audit(r *http.Request, mode, hostname string, found bool) {
	l := &models.Lookup{
		ID:         uuid.New().String(),
		Hostname:   hostname,
		Mode:       mode,
		Found:      found,
		RemoteAddr: r.RemoteAddr,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.DB.Record(l); err != nil {
		slog.Warn("failed to record lookup", "mode", mode, "host", hostname, "error", err)
	}
}

// Health handles GET /healthz — no auth required.
// Returns 503 if the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.Version,
		"commit":  h.Commit,
		"hosts":   h.Store.Len(),
	})
}

// ListInventory handles GET /api/v1/inventory. The body matches the output
// of the inventory script's --list mode.
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	inv := h.Store.ListAll()
	h.audit(r, models.ModeList, "", true)
	writeJSON(w, http.StatusOK, inv)
}

// GetHost handles GET /api/v1/hosts/{name}.
func (h *Handler) GetHost(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, ok := h.Store.Lookup(name)
	h.audit(r, models.ModeHost, name, ok)
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListLookups handles GET /api/v1/lookups with an optional ?mode= filter.
func (h *Handler) ListLookups(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode != "" && !models.ValidModes[mode] {
		writeError(w, http.StatusBadRequest, "invalid mode")
		return
	}

	lookups, err := h.DB.List(mode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list lookups")
		return
	}

	if lookups == nil {
		lookups = []*models.Lookup{}
	}
	writeJSON(w, http.StatusOK, lookups)
}

// GetLookup handles GET /api/v1/lookups/{id}.
func (h *Handler) GetLookup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	lookup, err := h.DB.GetByID(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "lookup not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get lookup")
		return
	}
	writeJSON(w, http.StatusOK, lookup)
}
