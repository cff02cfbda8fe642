// Package txn implements the transaction layer: the multi-tree paste/folder operations that must appear atomic even
// though the underlying key-value substrate only offers single-key atomics.
// A single process-wide folder-mutex linearizes every folder-affecting
// paste mutation against folder count adjustments, per the documented
// "Folder-mutex over MVCC" design note. The startup reconciler does not take
// this mutex; cmd/localpaste runs it to completion before this layer is
// constructed.
//
// Grounded on the project's earlier Rust core's crates/localpaste_core/src/db/folder_ops.rs
// semantics (reconstructed from the design and the ground-truth assertions
// in db/tests/folder_transactions.rs, since folder_ops.rs itself was not in
// the retrieved pack).
package txn

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/lock"
	"github.com/pszemraj/localpaste/internal/model"
	"github.com/pszemraj/localpaste/internal/store"
)

// migrateBatchSize bounds how many pastes a single folder-cascade step
// migrates to unfiled before re-listing, mirroring the documented "bounded
// batches" wording for delete_folder_tree_and_migrate_guarded.
const migrateBatchSize = 200

// Ops composes the paste store, folder store, and edit-lock manager under
// one folder-mutex.
type Ops struct {
	mu      sync.Mutex
	pastes  *store.PasteStore
	folders *store.FolderStore
	locks   *lock.Manager
	log     zerolog.Logger
}

// New constructs the transaction layer over the given stores and lock manager.
func New(pastes *store.PasteStore, folders *store.FolderStore, locks *lock.Manager, log zerolog.Logger) *Ops {
	return &Ops{pastes: pastes, folders: folders, locks: locks, log: log.With().Str("component", "txn").Logger()}
}

func equalFolderID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// verifyFolderAssignable rejects with BadRequest when folderID does not
// name an existing folder or names one currently mid-cascade-delete.
func (t *Ops) verifyFolderAssignable(folderID string) error {
	if _, err := t.folders.Get(folderID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewBadRequest("folder %s does not exist", folderID)
		}
		return err
	}
	marked, err := t.folders.IsDeleteMarked(folderID)
	if err != nil {
		return err
	}
	if marked {
		return model.NewBadRequest("folder %s is being deleted", folderID)
	}
	return nil
}

// CreatePasteWithFolder writes p (which must already carry a non-nil
// folder_id) under the folder-mutex: verifies the destination folder first,
// inserts the canonical+derived rows (a duplicate id fails with
// model.ErrConflict and leaves no side effects), then increments the
// destination's paste_count. If the count adjustment fails after the
// canonical write, it rolls the paste back out; if the rollback itself
// fails, the roll-back failure is logged and the count-adjust error is
// returned. A failed rollback does not mark the meta index faulted.
func (t *Ops) CreatePasteWithFolder(p *model.Paste) error {
	if p.FolderID == nil {
		return model.NewBadRequest("create-with-folder: paste %s has no folder_id", p.ID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.verifyFolderAssignable(*p.FolderID); err != nil {
		return err
	}
	if err := t.pastes.InsertCanonical(p); err != nil {
		return err
	}
	if err := t.folders.AdjustCount(*p.FolderID, 1); err != nil {
		if _, rbErr := t.pastes.RemoveCanonical(p.ID); rbErr != nil {
			t.log.Error().Err(rbErr).Str("paste_id", p.ID).
				Msg("rollback of paste create failed after folder count adjust error")
		}
		return err
	}
	return nil
}

// MovePasteBetweenFolders changes id's folder to newFolderID (nil for
// unfiled) and applies patch, under the folder-mutex. A no-op folder change
// degrades to a plain store update. Otherwise it reserves the destination
// first — incrementing its count before writing the paste and before
// decrementing the origin — so no observer ever sees a transient
// total-count deficit and a concurrent folder-delete on the destination
// cannot complete mid-move.
func (t *Ops) MovePasteBetweenFolders(id string, newFolderID *string, patch store.UpdatePatch) (*model.Paste, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.pastes.Get(id)
	if err != nil {
		return nil, err
	}
	if equalFolderID(current.FolderID, newFolderID) {
		return t.pastes.Update(id, patch)
	}

	destinationReserved := false
	if newFolderID != nil {
		if err := t.verifyFolderAssignable(*newFolderID); err != nil {
			return nil, err
		}
		if err := t.folders.AdjustCount(*newFolderID, 1); err != nil {
			return nil, err
		}
		destinationReserved = true
	}

	updated, err := t.pastes.UpdateWithFolderChange(id, patch, newFolderID)
	if err != nil {
		if destinationReserved {
			if rbErr := t.folders.AdjustCount(*newFolderID, -1); rbErr != nil {
				t.log.Error().Err(rbErr).Str("paste_id", id).
					Msg("failed to reverse destination folder reserve after move failure")
			}
		}
		return nil, err
	}

	if current.FolderID != nil {
		if err := t.folders.AdjustCount(*current.FolderID, -1); err != nil {
			t.log.Warn().Err(err).Str("paste_id", id).
				Msg("failed to decrement origin folder count after move; awaiting reconcile")
		}
	}
	return updated, nil
}

// DeletePasteWithFolder removes id under the folder-mutex, rejecting with a
// Locked error if an edit lock is currently held on it. The owning folder's
// count is decremented using the folder id recorded on the deleted row
// itself, not any caller-supplied context, so a concurrent move cannot leave
// this delete decrementing a stale folder. Returns (false, nil) if id does
// not exist.
func (t *Ops) DeletePasteWithFolder(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.pastes.Get(id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if t.locks.IsLocked(id) {
		return false, model.NewLocked("paste %s is currently open for editing", id)
	}

	deleted, err := t.pastes.RemoveCanonical(id)
	if err != nil {
		return false, err
	}
	if deleted.FolderID != nil {
		if err := t.folders.AdjustCount(*deleted.FolderID, -1); err != nil {
			t.log.Warn().Err(err).Str("paste_id", id).
				Msg("failed to decrement folder count after delete; awaiting reconcile")
		}
	}
	return true, nil
}

// DeleteFolderTreeAndMigrateGuarded deletes the folder subtree rooted at
// rootID. It collects the subtree bottom-up, calls acquireGuard with every
// paste id found anywhere in the subtree so the caller can install a batch
// mutation guard in its lock manager (acquireGuard failing, e.g. with a
// Locked error, aborts the whole operation before any state changes), marks
// every subtree folder deleting, migrates each folder's pastes to unfiled in
// bounded batches, deletes the folder rows, then clears the deleting
// markers. Returns model.ErrNotFound if rootID does not exist.
func (t *Ops) DeleteFolderTreeAndMigrateGuarded(rootID string, acquireGuard func(pasteIDs []string) (*lock.MutationGuard, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	subtree, err := t.collectSubtreeBottomUp(rootID)
	if err != nil {
		return err
	}
	if len(subtree) == 0 {
		return model.ErrNotFound
	}

	pasteIDs, err := t.pasteIDsInFolders(subtree)
	if err != nil {
		return err
	}

	guard, err := acquireGuard(pasteIDs)
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := t.folders.MarkDeleting(subtree); err != nil {
		return err
	}
	for _, folderID := range subtree {
		if err := t.migrateFolderPastesToUnfiled(folderID); err != nil {
			return err
		}
	}
	for _, folderID := range subtree {
		if err := t.folders.Delete(folderID); err != nil {
			return err
		}
	}
	return t.folders.ClearDeleting(subtree)
}

func (t *Ops) migrateFolderPastesToUnfiled(folderID string) error {
	for {
		batch, err := t.pastes.List(migrateBatchSize, &folderID)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, p := range batch {
			if _, err := t.pastes.UpdateWithFolderChange(p.ID, store.UpdatePatch{}, nil); err != nil {
				return err
			}
		}
	}
}

func (t *Ops) pasteIDsInFolders(folderIDs []string) ([]string, error) {
	var ids []string
	for _, fid := range folderIDs {
		fid := fid
		ps, err := t.pastes.List(1<<30, &fid)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// collectSubtreeBottomUp returns every folder id in rootID's subtree
// (including rootID itself), ordered so that deeper descendants precede
// their ancestors. Returns an empty, nil-error slice if rootID does not
// name an existing folder.
func (t *Ops) collectSubtreeBottomUp(rootID string) ([]string, error) {
	all, err := t.folders.ScanAll()
	if err != nil {
		return nil, err
	}
	rootExists := false
	childrenOf := make(map[string][]string)
	for _, f := range all {
		if f.ID == rootID {
			rootExists = true
		}
		if f.ParentID != nil {
			childrenOf[*f.ParentID] = append(childrenOf[*f.ParentID], f.ID)
		}
	}
	if !rootExists {
		return nil, nil
	}

	var levels [][]string
	queue := []string{rootID}
	for len(queue) > 0 {
		levels = append(levels, queue)
		var next []string
		for _, id := range queue {
			next = append(next, childrenOf[id]...)
		}
		queue = next
	}

	var order []string
	for i := len(levels) - 1; i >= 0; i-- {
		order = append(order, levels[i]...)
	}
	return order, nil
}
