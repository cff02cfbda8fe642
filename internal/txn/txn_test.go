package txn

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pszemraj/localpaste/internal/kv"
	"github.com/pszemraj/localpaste/internal/lock"
	"github.com/pszemraj/localpaste/internal/model"
	"github.com/pszemraj/localpaste/internal/store"
)

func strp(s string) *string { return &s }

func noDetect(string) *string { return nil }

func newTestOps(t *testing.T) (*Ops, *store.PasteStore, *store.FolderStore, *lock.Manager) {
	t.Helper()
	dir := t.TempDir()
	db, err := kv.Open(filepath.Join(dir, "test.db"), store.AllTrees...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pastes := store.NewPasteStore(db, zerolog.Nop(), nil)
	folders := store.NewFolderStore(db, zerolog.Nop())
	locks := lock.NewManager()
	return New(pastes, folders, locks, zerolog.Nop()), pastes, folders, locks
}

func TestCreatePasteWithFolder_IncrementsCount(t *testing.T) {
	ops, _, folders, _ := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "f1", Name: "Work"}))

	p := model.NewPaste("p1", "x", "n", noDetect)
	p.FolderID = strp("f1")
	require.NoError(t, ops.CreatePasteWithFolder(p))

	f, err := folders.Get("f1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.PasteCount)
}

func TestCreatePasteWithFolder_RejectsMissingFolder(t *testing.T) {
	ops, pastes, _, _ := newTestOps(t)

	p := model.NewPaste("p1", "x", "n", noDetect)
	p.FolderID = strp("missing")
	err := ops.CreatePasteWithFolder(p)
	assert.True(t, model.IsBadRequest(err))

	_, getErr := pastes.Get("p1")
	assert.True(t, model.IsNotFound(getErr), "paste must not exist after a rejected create")
}

func TestCreatePasteWithFolder_DuplicateIDHasNoSideEffects(t *testing.T) {
	ops, _, folders, _ := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "f1", Name: "Work"}))

	p := model.NewPaste("p1", "x", "n", noDetect)
	p.FolderID = strp("f1")
	require.NoError(t, ops.CreatePasteWithFolder(p))

	dup := model.NewPaste("p1", "y", "n2", noDetect)
	dup.FolderID = strp("f1")
	err := ops.CreatePasteWithFolder(dup)
	assert.True(t, model.IsConflict(err))

	f, getErr := folders.Get("f1")
	require.NoError(t, getErr)
	assert.Equal(t, uint64(1), f.PasteCount, "duplicate create must not double-increment the folder count")
}

func TestCreatePasteWithFolder_RejectsDeletingFolder(t *testing.T) {
	ops, _, folders, _ := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "f1", Name: "Work"}))
	require.NoError(t, folders.MarkDeleting([]string{"f1"}))

	p := model.NewPaste("p1", "x", "n", noDetect)
	p.FolderID = strp("f1")
	err := ops.CreatePasteWithFolder(p)
	assert.True(t, model.IsBadRequest(err))
}

func TestMovePasteBetweenFolders_DestinationFirstReserve(t *testing.T) {
	ops, pastes, folders, _ := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "x", Name: "X"}))
	require.NoError(t, folders.Create(&model.Folder{ID: "y", Name: "Y"}))

	p := model.NewPaste("p1", "content", "n", noDetect)
	p.FolderID = strp("x")
	require.NoError(t, ops.CreatePasteWithFolder(p))

	updated, err := ops.MovePasteBetweenFolders("p1", strp("y"), store.UpdatePatch{})
	require.NoError(t, err)
	require.NotNil(t, updated.FolderID)
	assert.Equal(t, "y", *updated.FolderID)

	fx, err := folders.Get("x")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fx.PasteCount)

	fy, err := folders.Get("y")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fy.PasteCount)

	fromStore, err := pastes.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "y", *fromStore.FolderID)
}

func TestMovePasteBetweenFolders_SameFolderDegradesToPlainUpdate(t *testing.T) {
	ops, _, folders, _ := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "x", Name: "X"}))

	p := model.NewPaste("p1", "content", "n", noDetect)
	p.FolderID = strp("x")
	require.NoError(t, ops.CreatePasteWithFolder(p))

	updated, err := ops.MovePasteBetweenFolders("p1", strp("x"), store.UpdatePatch{Name: strp("renamed")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	fx, err := folders.Get("x")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fx.PasteCount)
}

func TestDeletePasteWithFolder_UsesFolderFromDeletedRecord(t *testing.T) {
	ops, _, folders, _ := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "x", Name: "X"}))

	p := model.NewPaste("p1", "content", "n", noDetect)
	p.FolderID = strp("x")
	require.NoError(t, ops.CreatePasteWithFolder(p))

	ok, err := ops.DeletePasteWithFolder("p1")
	require.NoError(t, err)
	assert.True(t, ok)

	fx, err := folders.Get("x")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fx.PasteCount)
}

func TestDeletePasteWithFolder_RejectsWhenLocked(t *testing.T) {
	ops, _, folders, locks := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "x", Name: "X"}))

	p := model.NewPaste("p1", "content", "n", noDetect)
	p.FolderID = strp("x")
	require.NoError(t, ops.CreatePasteWithFolder(p))

	require.NoError(t, locks.Acquire("p1", "owner-1"))

	ok, err := ops.DeletePasteWithFolder("p1")
	assert.False(t, ok)
	assert.True(t, model.IsLocked(err))

	fx, err := folders.Get("x")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fx.PasteCount, "rejected delete must not touch the folder count")
}

func TestDeletePasteWithFolder_AbsentReturnsFalseNoError(t *testing.T) {
	ops, _, _, _ := newTestOps(t)
	ok, err := ops.DeletePasteWithFolder("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteFolderTreeAndMigrateGuarded_MigratesPastesAndDeletesSubtree(t *testing.T) {
	ops, pastes, folders, locks := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "parent", Name: "Parent"}))
	require.NoError(t, folders.Create(&model.Folder{ID: "child", Name: "Child", ParentID: strp("parent")}))

	p1 := model.NewPaste("p1", "a", "n1", noDetect)
	p1.FolderID = strp("parent")
	require.NoError(t, ops.CreatePasteWithFolder(p1))

	p2 := model.NewPaste("p2", "b", "n2", noDetect)
	p2.FolderID = strp("child")
	require.NoError(t, ops.CreatePasteWithFolder(p2))

	acquire := func(ids []string) (*lock.MutationGuard, error) {
		return locks.BeginBatchMutation(ids)
	}
	require.NoError(t, ops.DeleteFolderTreeAndMigrateGuarded("parent", acquire))

	_, err := folders.Get("parent")
	assert.True(t, model.IsNotFound(err))
	_, err = folders.Get("child")
	assert.True(t, model.IsNotFound(err))

	got1, err := pastes.Get("p1")
	require.NoError(t, err)
	assert.Nil(t, got1.FolderID)

	got2, err := pastes.Get("p2")
	require.NoError(t, err)
	assert.Nil(t, got2.FolderID)

	marked, err := folders.IsDeleteMarked("parent")
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestDeleteFolderTreeAndMigrateGuarded_RejectsWhenAnyPasteLocked(t *testing.T) {
	ops, _, folders, locks := newTestOps(t)
	require.NoError(t, folders.Create(&model.Folder{ID: "f1", Name: "F"}))

	p := model.NewPaste("p1", "a", "n1", noDetect)
	p.FolderID = strp("f1")
	require.NoError(t, ops.CreatePasteWithFolder(p))
	require.NoError(t, locks.Acquire("p1", "owner-1"))

	acquire := func(ids []string) (*lock.MutationGuard, error) {
		return locks.BeginBatchMutation(ids)
	}
	err := ops.DeleteFolderTreeAndMigrateGuarded("f1", acquire)
	assert.True(t, model.IsLocked(err))

	_, getErr := folders.Get("f1")
	assert.NoError(t, getErr, "rejected cascade must leave the folder in place")
}

func TestDeleteFolderTreeAndMigrateGuarded_NotFound(t *testing.T) {
	ops, _, _, locks := newTestOps(t)
	acquire := func(ids []string) (*lock.MutationGuard, error) {
		return locks.BeginBatchMutation(ids)
	}
	err := ops.DeleteFolderTreeAndMigrateGuarded("missing", acquire)
	assert.True(t, model.IsNotFound(err))
}
