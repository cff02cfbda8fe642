package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pszemraj/localpaste/internal/lock"
	"github.com/pszemraj/localpaste/internal/model"
	"github.com/pszemraj/localpaste/internal/util"
)

func (h *Handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	parentID := normalizeOptionalID(req.ParentID)
	if parentID != nil {
		if _, err := h.folders.Get(*parentID); err != nil {
			handleStoreError(w, h.log, model.NewBadRequest("parent folder %s does not exist", *parentID))
			return
		}
	}

	f := &model.Folder{
		ID:       util.MustGenerateID(),
		Name:     req.Name,
		ParentID: parentID,
	}
	if err := h.folders.Create(f); err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) updateFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.UpdateFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ParentID != nil {
		newParent := normalizeOptionalID(req.ParentID)
		if newParent != nil {
			if *newParent == id {
				writeError(w, http.StatusBadRequest, "a folder cannot be its own parent")
				return
			}
			if err := h.checkNoCycle(id, *newParent); err != nil {
				handleStoreError(w, h.log, err)
				return
			}
			marked, err := h.folders.IsDeleteMarked(*newParent)
			if err != nil {
				handleStoreError(w, h.log, err)
				return
			}
			if marked {
				writeError(w, http.StatusBadRequest, "parent folder is being deleted")
				return
			}
		}
	}

	updated, err := h.folders.Update(id, req.Name, req.ParentID, req.ParentID != nil)
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// checkNoCycle rejects reparenting id under newParent when newParent is id
// itself or one of id's existing descendants.
func (h *Handler) checkNoCycle(id, newParent string) error {
	all, err := h.folders.List()
	if err != nil {
		return err
	}
	childrenOf := make(map[string][]string, len(all))
	for _, f := range all {
		if f.ParentID != nil {
			childrenOf[*f.ParentID] = append(childrenOf[*f.ParentID], f.ID)
		}
	}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == newParent {
			return model.NewBadRequest("moving folder %s under %s would create a cycle", id, newParent)
		}
		queue = append(queue, childrenOf[cur]...)
	}
	return nil
}

func (h *Handler) deleteFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.ops.DeleteFolderTreeAndMigrateGuarded(id, func(pasteIDs []string) (*lock.MutationGuard, error) {
		return h.locks.BeginBatchMutation(pasteIDs)
	})
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) listFolders(w http.ResponseWriter, r *http.Request) {
	list, err := h.folders.List()
	if err != nil {
		handleStoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
