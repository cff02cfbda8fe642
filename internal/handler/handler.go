// Package handler implements LocalPaste's HTTP API: paste and folder CRUD,
// listing, and search, backed by the store/txn/lock layers.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/config"
	"github.com/pszemraj/localpaste/internal/lock"
	"github.com/pszemraj/localpaste/internal/middleware"
	"github.com/pszemraj/localpaste/internal/model"
	"github.com/pszemraj/localpaste/internal/store"
	"github.com/pszemraj/localpaste/internal/txn"
)

const maxListLimit = 100

// Handler holds the dependencies HTTP handlers need to serve the API.
type Handler struct {
	cfg     *config.Config
	pastes  *store.PasteStore
	folders *store.FolderStore
	locks   *lock.Manager
	ops     *txn.Ops
	log     zerolog.Logger
}

// New constructs a Handler wired to the given storage and transaction layers.
func New(cfg *config.Config, pastes *store.PasteStore, folders *store.FolderStore, locks *lock.Manager, ops *txn.Ops, log zerolog.Logger) *Handler {
	return &Handler{cfg: cfg, pastes: pastes, folders: folders, locks: locks, ops: ops, log: log}
}

// Routes returns the chi router with LocalPaste's API mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/paste", h.createPaste)
		r.Get("/paste/{id}", h.getPaste)
		r.Put("/paste/{id}", h.updatePaste)
		r.Delete("/paste/{id}", h.deletePaste)
		r.Get("/pastes", h.listPastes)
		r.Get("/pastes/meta", h.listPastesMeta)
		r.Get("/search", h.searchPastes)
		r.Get("/search/meta", h.searchPastesMeta)

		r.Group(func(r chi.Router) {
			r.Use(middleware.FolderDeprecation())
			r.Post("/folder", h.createFolder)
			r.Put("/folder/{id}", h.updateFolder)
			r.Delete("/folder/{id}", h.deleteFolder)
			r.Get("/folders", h.listFolders)
		})
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleStoreError maps the domain error taxonomy onto the HTTP status
// codes documented for LocalPaste's API.
func handleStoreError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case model.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case model.IsConflict(err):
		writeError(w, http.StatusConflict, "already exists")
	case model.IsBadRequest(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case model.IsLocked(err):
		writeError(w, http.StatusLocked, err.Error())
	case model.IsSerialization(err), model.IsStorage(err), model.IsPoisoned(err):
		log.Error().Err(err).Msg("storage failure")
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		log.Error().Err(err).Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func normalizeOptionalID(id *string) *string {
	if id == nil {
		return nil
	}
	if strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}

func parseLimit(r *http.Request) int {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

func queryFolderID(r *http.Request) *string {
	v := r.URL.Query().Get("folder_id")
	if v == "" {
		return nil
	}
	return &v
}

// applyFolderDeprecation applies the folder-deprecation headers directly
// (rather than through the middleware chain) when a single handler detects
// folder_id usage in its own request body or query string.
func applyFolderDeprecation(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Deprecation", "true")
	h.Set("Sunset", "Fri, 31 Dec 2027 23:59:59 GMT")
	h.Set("Warning", `299 - "Folder APIs are deprecated; prefer tags, search, and smart filters"`)
}
