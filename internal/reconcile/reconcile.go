// Package reconcile implements the startup reconciler: it runs exactly once at database open, before any command
// is served, repairing missing/corrupt derived state, folder count drift,
// orphan folder references, and stale delete markers — or, if repair itself
// fails, leaving the index in a degraded mode that runtime reads fall back
// from rather than refusing to start.
//
// Grounded on the eight ground-truth scenarios in the project's earlier Rust core's
// crates/localpaste_core/src/db/tests/startup_reconcile.rs.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/kv"
	"github.com/pszemraj/localpaste/internal/model"
	"github.com/pszemraj/localpaste/internal/store"
)

// Run executes the reconcile steps described in the design against db,
// using folders for folder-tree reads/writes. forceReindex corresponds to
// the REINDEX environment flag: when true, step 1's derived rebuild always
// runs regardless of the current meta index state.
//
// Run never returns an error: a failure at any step is logged and leaves
// the meta index state faulted rather than preventing startup.
func Run(db *kv.DB, folders *store.FolderStore, log zerolog.Logger, forceReindex bool) error {
	log = log.With().Str("component", "reconcile").Logger()

	st, ok := store.ReadMetaIndexState(db)
	needsRebuild := !ok || st.SchemaVersion != store.CurrentSchemaVersion || st.Faulted || forceReindex

	if err := runSteps(db, folders, log, needsRebuild); err != nil {
		log.Error().Err(err).Msg("startup reconcile failed; continuing in degraded mode")
		degraded := store.MetaIndexState{SchemaVersion: store.CurrentSchemaVersion, Faulted: true}
		if werr := store.WriteMetaIndexState(db, degraded); werr != nil {
			log.Error().Err(werr).Msg("failed to persist degraded-mode state after reconcile failure")
		}
		return nil
	}

	fresh := store.MetaIndexState{SchemaVersion: store.CurrentSchemaVersion, InProgressMutations: 0, Faulted: false}
	if err := store.WriteMetaIndexState(db, fresh); err != nil {
		log.Error().Err(err).Msg("failed to persist fresh reconcile state; continuing in degraded mode")
		degraded := fresh
		degraded.Faulted = true
		_ = store.WriteMetaIndexState(db, degraded)
		return nil
	}
	if err := db.Flush(); err != nil {
		log.Error().Err(err).Msg("failed to flush after reconcile; continuing in degraded mode")
		degraded := fresh
		degraded.Faulted = true
		_ = store.WriteMetaIndexState(db, degraded)
		return nil
	}
	log.Info().Bool("rebuilt_derived", needsRebuild).Msg("startup reconcile complete")
	return nil
}

func runSteps(db *kv.DB, folders *store.FolderStore, log zerolog.Logger, needsRebuild bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during reconcile: %v", r)
		}
	}()

	if needsRebuild {
		if err := rebuildDerived(db, log); err != nil {
			return fmt.Errorf("rebuild derived state: %w", err)
		}
	}
	if err := removeGhostRows(db); err != nil {
		return fmt.Errorf("remove ghost rows: %w", err)
	}
	if err := repairOrphanFolderRefs(db, folders, log); err != nil {
		return fmt.Errorf("repair orphan folder references: %w", err)
	}
	if err := recomputeFolderCounts(db, folders); err != nil {
		return fmt.Errorf("recompute folder counts: %w", err)
	}
	if err := folders.ClearAllDeleting(); err != nil {
		return fmt.Errorf("clear stale deleting markers: %w", err)
	}
	return nil
}

// rebuildDerived drops and rewrites the meta and recency trees wholesale
// from a canonical scan.
func rebuildDerived(db *kv.DB, log zerolog.Logger) error {
	if err := db.Clear(store.TreePastesMeta); err != nil {
		return err
	}
	if err := db.Clear(store.TreePastesByUpdated); err != nil {
		return err
	}
	return db.ForEach(store.TreePastes, func(key, value []byte) (bool, error) {
		p, err := model.DecodePaste(value)
		if err != nil {
			log.Warn().Str("paste_id", string(key)).Err(err).Msg("skipping undecodable paste during derived rebuild")
			return true, nil
		}
		if err := db.Put(store.TreePastesMeta, p.ID, model.EncodePasteMeta(p.ToMeta())); err != nil {
			return false, err
		}
		if err := db.Put(store.TreePastesByUpdated, string(model.RecencyKey(p.UpdatedAt, p.ID)), []byte(p.ID)); err != nil {
			return false, err
		}
		return true, nil
	})
}

// removeGhostRows deletes meta and recency rows whose paste id has no
// canonical counterpart, left behind by a crash between the canonical write
// and the derived write.
func removeGhostRows(db *kv.DB) error {
	var ghostMetaIDs []string
	if err := db.ForEach(store.TreePastesMeta, func(key, _ []byte) (bool, error) {
		id := string(key)
		raw, err := db.Get(store.TreePastes, id)
		if err != nil {
			return false, err
		}
		if raw == nil {
			ghostMetaIDs = append(ghostMetaIDs, id)
		}
		return true, nil
	}); err != nil {
		return err
	}
	for _, id := range ghostMetaIDs {
		if err := db.Delete(store.TreePastesMeta, id); err != nil {
			return err
		}
	}

	var ghostRecencyKeys []string
	if err := db.ForEach(store.TreePastesByUpdated, func(key, value []byte) (bool, error) {
		raw, err := db.Get(store.TreePastes, string(value))
		if err != nil {
			return false, err
		}
		if raw == nil {
			ghostRecencyKeys = append(ghostRecencyKeys, string(key))
		}
		return true, nil
	}); err != nil {
		return err
	}
	for _, k := range ghostRecencyKeys {
		if err := db.Delete(store.TreePastesByUpdated, k); err != nil {
			return err
		}
	}
	return nil
}

// repairOrphanFolderRefs clears folder_id on any canonical paste whose
// folder no longer exists, keeping the derived meta row in sync.
func repairOrphanFolderRefs(db *kv.DB, folders *store.FolderStore, log zerolog.Logger) error {
	all, err := folders.ScanAll()
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(all))
	for _, f := range all {
		existing[f.ID] = true
	}

	var toFix []*model.Paste
	if err := db.ForEach(store.TreePastes, func(key, value []byte) (bool, error) {
		p, err := model.DecodePaste(value)
		if err != nil {
			log.Warn().Str("paste_id", string(key)).Err(err).Msg("skipping undecodable paste during orphan-ref repair")
			return true, nil
		}
		if p.FolderID != nil && !existing[*p.FolderID] {
			toFix = append(toFix, p)
		}
		return true, nil
	}); err != nil {
		return err
	}

	for _, p := range toFix {
		p.FolderID = nil
		if err := db.Put(store.TreePastes, p.ID, model.EncodePaste(p)); err != nil {
			return err
		}
		if err := db.Put(store.TreePastesMeta, p.ID, model.EncodePasteMeta(p.ToMeta())); err != nil {
			return err
		}
	}
	return nil
}

// recomputeFolderCounts recounts every folder's paste_count from a
// canonical scan and overrides the stored value.
func recomputeFolderCounts(db *kv.DB, folders *store.FolderStore) error {
	counts := make(map[string]uint64)
	if err := db.ForEach(store.TreePastes, func(_, value []byte) (bool, error) {
		p, err := model.DecodePaste(value)
		if err != nil {
			return true, nil
		}
		if p.FolderID != nil {
			counts[*p.FolderID]++
		}
		return true, nil
	}); err != nil {
		return err
	}

	all, err := folders.ScanAll()
	if err != nil {
		return err
	}
	for _, f := range all {
		if err := folders.SetCount(f.ID, counts[f.ID]); err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
	}
	return nil
}
