package store

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/kv"
	"github.com/pszemraj/localpaste/internal/model"
)

// FolderStore owns the `folders` tree and the `folders_deleting` set.
type FolderStore struct {
	db  *kv.DB
	log zerolog.Logger
}

// NewFolderStore constructs a FolderStore.
func NewFolderStore(db *kv.DB, log zerolog.Logger) *FolderStore {
	return &FolderStore{db: db, log: log.With().Str("component", "folder_store").Logger()}
}

// Create writes a new folder row, failing with model.ErrConflict if id
// already exists.
func (s *FolderStore) Create(f *model.Folder) error {
	existing, err := s.db.Get(TreeFolders, f.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return model.ErrConflict
	}
	return s.db.Put(TreeFolders, f.ID, model.EncodeFolder(f))
}

// Get returns the folder with id, or model.ErrNotFound if absent.
func (s *FolderStore) Get(id string) (*model.Folder, error) {
	raw, err := s.db.Get(TreeFolders, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, model.ErrNotFound
	}
	f, err := model.DecodeFolder(raw)
	if err != nil {
		return nil, model.NewStorage("decode folder "+id, err)
	}
	return f, nil
}

// List returns every folder sorted by name ascending for stable UI ordering.
func (s *FolderStore) List() ([]*model.Folder, error) {
	var out []*model.Folder
	err := s.db.ForEach(TreeFolders, func(key, value []byte) (bool, error) {
		f, err := model.DecodeFolder(value)
		if err != nil {
			s.log.Warn().Str("folder_id", string(key)).Err(err).Msg("skipping undecodable folder during list")
			return true, nil
		}
		out = append(out, f)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the folder row for id. It does not cascade: callers that
// need to migrate contained pastes and remove a subtree must use
// internal/txn's DeleteFolderTreeAndMigrateGuarded.
func (s *FolderStore) Delete(id string) error {
	return s.db.Delete(TreeFolders, id)
}

// Update atomically renames/reparents the folder with id. An empty-string
// parentID normalizes to absent (root-level folder).
func (s *FolderStore) Update(id string, name *string, parentID *string, parentIDSet bool) (*model.Folder, error) {
	var updated *model.Folder
	err := s.db.RMW(TreeFolders, id, func(prior []byte) ([]byte, bool, error) {
		if prior == nil {
			return nil, false, model.ErrNotFound
		}
		f, err := model.DecodeFolder(prior)
		if err != nil {
			return nil, false, model.NewSerialization("decode folder "+id, err)
		}
		if name != nil {
			f.Name = *name
		}
		if parentIDSet {
			if parentID == nil || *parentID == "" {
				f.ParentID = nil
			} else {
				f.ParentID = parentID
			}
		}
		updated = f
		return model.EncodeFolder(f), true, nil
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// AdjustCount atomically adds delta to the folder's paste_count using
// saturating arithmetic, so a racing decrement below zero clamps at zero
// instead of underflowing. Returns model.ErrNotFound if the folder has been
// deleted out from under the caller.
func (s *FolderStore) AdjustCount(id string, delta int64) error {
	err := s.db.RMW(TreeFolders, id, func(prior []byte) ([]byte, bool, error) {
		if prior == nil {
			return nil, false, model.ErrNotFound
		}
		f, err := model.DecodeFolder(prior)
		if err != nil {
			return nil, false, model.NewSerialization("decode folder "+id, err)
		}
		f.PasteCount = saturatingAdd(f.PasteCount, delta)
		return model.EncodeFolder(f), true, nil
	})
	if err != nil && errors.Is(err, model.ErrNotFound) {
		return model.ErrNotFound
	}
	return err
}

func saturatingAdd(count uint64, delta int64) uint64 {
	if delta >= 0 {
		return count + uint64(delta)
	}
	dec := uint64(-delta)
	if dec > count {
		return 0
	}
	return count - dec
}

// SetCount directly overrides the folder's paste_count. Used only by the
// startup reconciler to repair drift from a recomputed canonical scan;
// ordinary callers must use AdjustCount so concurrent adjustments compose.
func (s *FolderStore) SetCount(id string, value uint64) error {
	err := s.db.RMW(TreeFolders, id, func(prior []byte) ([]byte, bool, error) {
		if prior == nil {
			return nil, false, model.ErrNotFound
		}
		f, err := model.DecodeFolder(prior)
		if err != nil {
			return nil, false, model.NewSerialization("decode folder "+id, err)
		}
		f.PasteCount = value
		return model.EncodeFolder(f), true, nil
	})
	if err != nil && errors.Is(err, model.ErrNotFound) {
		return model.ErrNotFound
	}
	return err
}

// MarkDeleting adds every id in ids to the folders-deleting set, used by a
// folder cascade to reject new paste creations/moves targeting a folder
// that is mid-delete.
func (s *FolderStore) MarkDeleting(ids []string) error {
	for _, id := range ids {
		if err := s.db.Put(TreeFoldersDeleting, id, []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

// ClearDeleting removes every id in ids from the folders-deleting set.
func (s *FolderStore) ClearDeleting(ids []string) error {
	for _, id := range ids {
		if err := s.db.Delete(TreeFoldersDeleting, id); err != nil {
			return err
		}
	}
	return nil
}

// IsDeleteMarked reports whether id is currently mid-cascade.
func (s *FolderStore) IsDeleteMarked(id string) (bool, error) {
	raw, err := s.db.Get(TreeFoldersDeleting, id)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// ClearAllDeleting wipes the entire folders-deleting set. Used by the
// startup reconciler to drop stale markers left by a crash mid-cascade.
func (s *FolderStore) ClearAllDeleting() error {
	return s.db.Clear(TreeFoldersDeleting)
}

// ScanAll returns every folder in the tree, unsorted, for reconciler use.
func (s *FolderStore) ScanAll() ([]*model.Folder, error) {
	var out []*model.Folder
	err := s.db.ForEach(TreeFolders, func(key, value []byte) (bool, error) {
		f, err := model.DecodeFolder(value)
		if err != nil {
			s.log.Warn().Str("folder_id", string(key)).Err(err).Msg("skipping undecodable folder during scan")
			return true, nil
		}
		out = append(out, f)
		return true, nil
	})
	return out, err
}
