// Package store implements the paste and folder stores: CRUD over the canonical trees plus the derived metadata,
// recency index, and folder-count bookkeeping layered on top of internal/kv.
// Grounded on the project's earlier Rust core's crates/localpaste_core/src/db/{paste.rs,folder.rs}.
package store

// Tree names, shared with internal/reconcile and cmd/localpaste so every
// consumer of internal/kv opens the same fixed set.
const (
	TreePastes          = "pastes"
	TreePastesMeta      = "pastes_meta"
	TreePastesByUpdated = "pastes_by_updated"
	TreePastesMetaState = "pastes_meta_state"
	TreeFolders         = "folders"
	TreeFoldersDeleting = "folders_deleting"
)

// AllTrees lists every named tree this service opens at startup.
var AllTrees = []string{
	TreePastes,
	TreePastesMeta,
	TreePastesByUpdated,
	TreePastesMetaState,
	TreeFolders,
	TreeFoldersDeleting,
}
