package store

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/kv"
)

// CurrentSchemaVersion is bumped whenever the on-disk record layout changes
// in a way that requires the reconciler to rebuild derived state on first
// open.
const CurrentSchemaVersion uint32 = 1

const metaStateKey = "state"

// MetaIndexState is the `pastes_meta_state` marker record: it
// tells the startup reconciler whether derived state (PasteMeta, the
// recency index, folder counts) can be trusted, and tells runtime read paths
// whether to fall back to a canonical scan.
type MetaIndexState struct {
	SchemaVersion       uint32
	InProgressMutations uint64
	Faulted             bool
}

func encodeMetaIndexState(s MetaIndexState) []byte {
	buf := make([]byte, 13)
	binary.BigEndian.PutUint32(buf[0:4], s.SchemaVersion)
	binary.BigEndian.PutUint64(buf[4:12], s.InProgressMutations)
	if s.Faulted {
		buf[12] = 1
	}
	return buf
}

func decodeMetaIndexState(b []byte) (MetaIndexState, error) {
	if len(b) != 13 {
		return MetaIndexState{}, fmt.Errorf("meta index state: want 13 bytes, got %d", len(b))
	}
	return MetaIndexState{
		SchemaVersion:       binary.BigEndian.Uint32(b[0:4]),
		InProgressMutations: binary.BigEndian.Uint64(b[4:12]),
		Faulted:             b[12] != 0,
	}, nil
}

// ReadMetaIndexState returns the current state record and whether it parsed
// cleanly. A missing or corrupt record is reported as (_, false) rather than
// an error: both cases mean "the reconciler must rebuild", which is exactly
// how internal/reconcile uses the second return value.
func ReadMetaIndexState(db *kv.DB) (MetaIndexState, bool) {
	raw, err := db.Get(TreePastesMetaState, metaStateKey)
	if err != nil || raw == nil {
		return MetaIndexState{}, false
	}
	st, err := decodeMetaIndexState(raw)
	if err != nil {
		return MetaIndexState{}, false
	}
	return st, true
}

// WriteMetaIndexState persists st.
func WriteMetaIndexState(db *kv.DB, st MetaIndexState) error {
	return db.Put(TreePastesMetaState, metaStateKey, encodeMetaIndexState(st))
}

// IsFaulted reports whether the index is currently in degraded mode.
func IsFaulted(db *kv.DB) bool {
	st, ok := ReadMetaIndexState(db)
	return ok && st.Faulted
}

// markFaulted latches the index into degraded mode after a derived-write
// failure that follows a successful canonical commit: the
// canonical write is the contract, so the failure is logged and absorbed
// here rather than surfaced to the caller.
func markFaulted(db *kv.DB, log zerolog.Logger, operation, pasteID string, cause error) {
	st, ok := ReadMetaIndexState(db)
	if !ok {
		st = MetaIndexState{SchemaVersion: CurrentSchemaVersion}
	}
	st.Faulted = true
	if err := WriteMetaIndexState(db, st); err != nil {
		log.Error().Err(err).Str("operation", operation).Str("paste_id", pasteID).
			Msg("failed to persist faulted marker after derived-index write failure")
	}
	log.Warn().Str("operation", operation).Str("paste_id", pasteID).Err(cause).
		Msg("derived index write failed; index marked faulted")
}
