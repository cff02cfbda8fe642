package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pszemraj/localpaste/internal/model"
	"github.com/pszemraj/localpaste/internal/naming"
	"github.com/pszemraj/localpaste/internal/store"
	"github.com/pszemraj/localpaste/internal/util"
)

// newPasteID mints a fresh id, re-rolling on the (astronomically unlikely)
// chance of a collision with an existing paste.
func (h *Handler) newPasteID() string {
	for {
		id := util.MustGenerateID()
		if _, err := h.pastes.Get(id); model.IsNotFound(err) {
			return id
		}
	}
}

func (h *Handler) createPaste(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePasteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	folderFieldUsed := req.FolderID != nil

	if int64(len(req.Content)) > h.cfg.MaxPasteSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Paste size exceeds maximum of %d bytes", h.cfg.MaxPasteSize))
		return
	}

	folderID := normalizeOptionalID(req.FolderID)
	if folderID != nil {
		if _, err := h.folders.Get(*folderID); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Folder with id '%s' does not exist", *folderID))
			return
		}
	}

	name := naming.GenerateNameForContent(req.Content, req.Language)
	if req.Name != nil && *req.Name != "" {
		name = *req.Name
	}

	p := model.NewPaste(h.newPasteID(), req.Content, name, h.pastes.DetectLanguage)
	p.FolderID = folderID
	if req.Tags != nil {
		p.Tags = model.NormalizeTags(req.Tags)
	}
	if req.Language != nil {
		p.Language = req.Language
		if req.LanguageIsManual != nil {
			p.LanguageIsManual = *req.LanguageIsManual
		} else {
			p.LanguageIsManual = true
		}
	} else if req.LanguageIsManual != nil {
		p.LanguageIsManual = *req.LanguageIsManual
	}

	var err error
	if p.FolderID != nil {
		err = h.ops.CreatePasteWithFolder(p)
	} else {
		err = h.pastes.Create(p)
	}
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}

	if folderFieldUsed {
		applyFolderDeprecation(w)
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) getPaste(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.pastes.Get(id)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) updatePaste(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.UpdatePasteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	folderFieldUsed := req.FolderID != nil

	if req.Content != nil && int64(len(*req.Content)) > h.cfg.MaxPasteSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Paste size exceeds maximum of %d bytes", h.cfg.MaxPasteSize))
		return
	}

	old, err := h.pastes.Get(id)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}

	var newFolderID *string
	folderChanging := false
	if req.FolderID != nil {
		newFolderID = normalizeOptionalID(req.FolderID)
		if newFolderID != nil {
			if _, gerr := h.folders.Get(*newFolderID); gerr != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Folder with id '%s' does not exist", *newFolderID))
				return
			}
		}
		folderChanging = !equalOptionalString(newFolderID, old.FolderID)
	}

	patch := store.UpdatePatch{
		Content:          req.Content,
		Name:             req.Name,
		Language:         req.Language,
		LanguageIsManual: req.LanguageIsManual,
	}
	if req.Tags != nil {
		patch.Tags = model.NormalizeTags(req.Tags)
		patch.TagsSet = true
	}

	var updated *model.Paste
	if folderChanging {
		updated, err = h.ops.MovePasteBetweenFolders(id, newFolderID, patch)
	} else {
		updated, err = h.pastes.Update(id, patch)
	}
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}

	if folderFieldUsed {
		applyFolderDeprecation(w)
	}
	writeJSON(w, http.StatusOK, updated)
}

func equalOptionalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (h *Handler) deletePaste(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.ops.DeletePasteWithFolder(id)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) listPastes(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	folderID := queryFolderID(r)

	list, err := h.pastes.List(limit, folderID)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	if folderID != nil {
		applyFolderDeprecation(w)
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) listPastesMeta(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	folderID := queryFolderID(r)

	list, err := h.pastes.ListMeta(limit, folderID)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	if folderID != nil {
		applyFolderDeprecation(w)
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) searchPastes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := parseLimit(r)
	folderID := queryFolderID(r)
	var language *string
	if v := r.URL.Query().Get("language"); v != "" {
		language = &v
	}

	results, err := h.pastes.Search(q, limit, folderID, language)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	if folderID != nil {
		applyFolderDeprecation(w)
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) searchPastesMeta(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := parseLimit(r)
	folderID := queryFolderID(r)
	var language *string
	if v := r.URL.Query().Get("language"); v != "" {
		language = &v
	}

	results, err := h.pastes.SearchMeta(q, limit, folderID, language)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	if folderID != nil {
		applyFolderDeprecation(w)
	}
	writeJSON(w, http.StatusOK, results)
}
