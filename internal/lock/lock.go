// Package lock implements the in-memory edit-lock manager: per-paste owner-scoped locks plus batch mutation guards
// that block new lock acquisition while a destructive operation is in
// flight. Grounded on original_source's
// crates/localpaste_server/src/locks.rs (PasteLockManager/PasteMutationGuard).
package lock

import (
	"sync"

	"github.com/pszemraj/localpaste/internal/model"
)

type state struct {
	holdersByPaste map[string]map[string]struct{}
	mutatingPastes map[string]struct{}
}

// Manager tracks, per paste id, the set of owner ids holding an edit lock,
// and a disjoint set of paste ids currently under a mutation guard.
//
// Go's sync.Mutex does not carry Rust's poisoning semantics: a panic while
// the mutex is held does not leave it permanently unusable the way a
// poisoned std::sync::Mutex does. Manager carries its own latched poisoned
// flag instead. No method sets it on a panic; the only way to set it is
// MarkPoisoned, and tests use that to reach the poisoned paths. No method
// calls user code while holding mu.
type Manager struct {
	mu       sync.Mutex
	st       state
	poisoned bool
}

// NewManager returns an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		st: state{
			holdersByPaste: make(map[string]map[string]struct{}),
			mutatingPastes: make(map[string]struct{}),
		},
	}
}

// MarkPoisoned latches the manager into the poisoned state. After that,
// Acquire, Release, BeginMutation and BeginBatchMutation return
// model.ErrPoisoned instead of operating on the map. IsLocked returns no
// error: it reports false for every paste. MutationGuard.Release still
// clears its markers.
// Exposed for tests simulating a poisoned recovery path; production code
// never calls this directly.
func (m *Manager) MarkPoisoned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poisoned = true
}

// Acquire grants paste an edit lock to owner. Fails with a Locked error if
// paste is currently under a mutation guard. Idempotent for the same owner.
func (m *Manager) Acquire(pasteID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return model.ErrPoisoned
	}
	if _, mutating := m.st.mutatingPastes[pasteID]; mutating {
		return model.NewLocked("paste %s is currently being mutated", pasteID)
	}
	holders, ok := m.st.holdersByPaste[pasteID]
	if !ok {
		holders = make(map[string]struct{})
		m.st.holdersByPaste[pasteID] = holders
	}
	holders[ownerID] = struct{}{}
	return nil
}

// Release removes owner's hold on paste. Fails with a BadRequest error
// if owner does not currently hold the lock. Removes the paste entry
// entirely once the holder set becomes empty.
func (m *Manager) Release(pasteID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return model.ErrPoisoned
	}
	holders, ok := m.st.holdersByPaste[pasteID]
	if !ok {
		return model.NewBadRequest("paste %s is not held by owner %s", pasteID, ownerID)
	}
	if _, held := holders[ownerID]; !held {
		return model.NewBadRequest("paste %s is not held by owner %s", pasteID, ownerID)
	}
	delete(holders, ownerID)
	if len(holders) == 0 {
		delete(m.st.holdersByPaste, pasteID)
	}
	return nil
}

// IsLocked reports whether any owner currently holds paste's edit lock.
func (m *Manager) IsLocked(pasteID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return false
	}
	holders, ok := m.st.holdersByPaste[pasteID]
	return ok && len(holders) > 0
}

// MutationGuard is a scoped marker returned by BeginMutation/BeginBatchMutation
// that blocks new lock acquisition on its paste ids until Release is called.
// Release is safe to call multiple times and on all exit paths, including
// via defer after a panic.
type MutationGuard struct {
	m        *Manager
	pasteIDs []string
	released bool
}

// Release clears the mutation markers for every paste id in the guard.
func (g *MutationGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	for _, id := range g.pasteIDs {
		delete(g.m.st.mutatingPastes, id)
	}
}

// BeginMutation is BeginBatchMutation for a single paste id.
func (m *Manager) BeginMutation(pasteID string) (*MutationGuard, error) {
	return m.BeginBatchMutation([]string{pasteID})
}

// BeginBatchMutation marks every (de-duplicated) id in ids as guarded,
// after first verifying none is held or already guarded — the check and the
// commit happen under the same critical section so a failing validation
// never leaves a partial guard installed.
func (m *Manager) BeginBatchMutation(ids []string) (*MutationGuard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return nil, model.ErrPoisoned
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	for _, id := range unique {
		if holders, ok := m.st.holdersByPaste[id]; ok && len(holders) > 0 {
			return nil, model.NewLocked("paste %s is currently open for editing", id)
		}
		if _, mutating := m.st.mutatingPastes[id]; mutating {
			return nil, model.NewLocked("paste %s is currently being mutated", id)
		}
	}

	for _, id := range unique {
		m.st.mutatingPastes[id] = struct{}{}
	}

	return &MutationGuard{m: m, pasteIDs: unique}, nil
}
