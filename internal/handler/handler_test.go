package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pszemraj/localpaste/internal/config"
	"github.com/pszemraj/localpaste/internal/kv"
	"github.com/pszemraj/localpaste/internal/lock"
	"github.com/pszemraj/localpaste/internal/model"
	"github.com/pszemraj/localpaste/internal/store"
	"github.com/pszemraj/localpaste/internal/txn"
)

// newTestHandler wires a Handler over a fresh temp-file database, mirroring
// the real cmd/localpaste wiring but with no reconciler pass needed since
// every test starts from an empty store.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	dir := t.TempDir()
	db, err := kv.Open(filepath.Join(dir, "test.db"), store.AllTrees...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	pastes := store.NewPasteStore(db, log, nil)
	folders := store.NewFolderStore(db, log)
	locks := lock.NewManager()
	ops := txn.New(pastes, folders, locks, log)

	cfg := config.DefaultConfig()
	cfg.MaxPasteSize = 1024 * 1024

	return New(cfg, pastes, folders, locks, ops, log)
}

func doRequest(h *Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t)
	rr := doRequest(h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decodeBody[map[string]string](t, rr)
	assert.Equal(t, "ok", resp["status"])
}

func TestCreatePaste_ValidRequest(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(h, http.MethodPost, "/api/paste", map[string]any{
		"content": "package main\n\nfunc main() {}\n",
		"name":    "hello.go",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	p := decodeBody[model.Paste](t, rr)
	assert.Equal(t, "hello.go", p.Name)
	assert.NotEmpty(t, p.ID)
	assert.Nil(t, p.FolderID)
}

func TestCreatePaste_EmptyFolderIDNormalizesToAbsent(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(h, http.MethodPost, "/api/paste", map[string]any{
		"content":   "x",
		"folder_id": "",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	p := decodeBody[model.Paste](t, rr)
	assert.Nil(t, p.FolderID)
}

func TestCreatePaste_OversizedContentReturns400(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(h, http.MethodPost, "/api/paste", map[string]any{
		"content": strings.Repeat("a", int(h.cfg.MaxPasteSize)+1),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	errBody := decodeBody[map[string]string](t, rr)
	assert.Contains(t, errBody["error"], "exceeds maximum")
}

func TestCreatePaste_UnknownFolderReturns400(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(h, http.MethodPost, "/api/paste", map[string]any{
		"content":   "x",
		"folder_id": "does-not-exist",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetPaste_NotFound(t *testing.T) {
	h := newTestHandler(t)
	rr := doRequest(h, http.MethodGet, "/api/paste/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetPaste_RoundTrip(t *testing.T) {
	h := newTestHandler(t)
	created := decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "hi"}))

	rr := doRequest(h, http.MethodGet, "/api/paste/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[model.Paste](t, rr)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "hi", got.Content)
}

func TestUpdatePaste_ContentChangeBumpsUpdatedAt(t *testing.T) {
	h := newTestHandler(t)
	created := decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "v1"}))

	rr := doRequest(h, http.MethodPut, "/api/paste/"+created.ID, map[string]any{"content": "v2"})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decodeBody[model.Paste](t, rr)
	assert.Equal(t, "v2", updated.Content)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
}

func TestDeletePaste_Success(t *testing.T) {
	h := newTestHandler(t)
	created := decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "v1"}))

	rr := doRequest(h, http.MethodDelete, "/api/paste/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h, http.MethodGet, "/api/paste/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeletePaste_LockedReturns423(t *testing.T) {
	h := newTestHandler(t)
	created := decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "v1"}))

	require.NoError(t, h.locks.Acquire(created.ID, "editor-1"))

	rr := doRequest(h, http.MethodDelete, "/api/paste/"+created.ID, nil)
	assert.Equal(t, http.StatusLocked, rr.Code)

	require.NoError(t, h.locks.Release(created.ID, "editor-1"))
	rr = doRequest(h, http.MethodDelete, "/api/paste/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListPastes_MostRecentFirst(t *testing.T) {
	h := newTestHandler(t)
	decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "first"}))
	decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "second"}))

	rr := doRequest(h, http.MethodGet, "/api/pastes?limit=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decodeBody[[]model.Paste](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Content)
}

func TestSearchPastes_SubstringMatch(t *testing.T) {
	h := newTestHandler(t)
	decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "Rust is awesome"}))
	decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "Python"}))

	rr := doRequest(h, http.MethodGet, "/api/search?q=rust", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	results := decodeBody[[]model.Paste](t, rr)
	require.Len(t, results, 1)
	assert.Equal(t, "Rust is awesome", results[0].Content)
}

func TestSearchPastes_WhitespaceQueryReturnsEmpty(t *testing.T) {
	h := newTestHandler(t)
	decodeBody[model.Paste](t, doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "anything"}))

	rr := doRequest(h, http.MethodGet, "/api/search?q=%20", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	results := decodeBody[[]model.Paste](t, rr)
	assert.Empty(t, results)
}

func TestFolderCRUD_EndToEnd(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(h, http.MethodPost, "/api/folder", map[string]any{"name": "A"})
	require.Equal(t, http.StatusOK, rr.Code)
	fa := decodeBody[model.Folder](t, rr)

	rr = doRequest(h, http.MethodPost, "/api/folder", map[string]any{"name": "B", "parent_id": fa.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	fb := decodeBody[model.Folder](t, rr)

	rr = doRequest(h, http.MethodPost, "/api/paste", map[string]any{"content": "x", "folder_id": fb.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	p := decodeBody[model.Paste](t, rr)

	rr = doRequest(h, http.MethodGet, "/api/folders", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decodeBody[[]model.Folder](t, rr)
	assert.Len(t, list, 2)

	rr = doRequest(h, http.MethodDelete, "/api/folder/"+fa.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h, http.MethodGet, "/api/paste/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[model.Paste](t, rr)
	assert.Nil(t, got.FolderID)
}

func TestUpdateFolder_RejectsSelfParent(t *testing.T) {
	h := newTestHandler(t)
	f := decodeBody[model.Folder](t, doRequest(h, http.MethodPost, "/api/folder", map[string]any{"name": "A"}))

	rr := doRequest(h, http.MethodPut, "/api/folder/"+f.ID, map[string]any{"parent_id": f.ID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateFolder_RejectsCycle(t *testing.T) {
	h := newTestHandler(t)
	parent := decodeBody[model.Folder](t, doRequest(h, http.MethodPost, "/api/folder", map[string]any{"name": "parent"}))
	child := decodeBody[model.Folder](t, doRequest(h, http.MethodPost, "/api/folder", map[string]any{"name": "child", "parent_id": parent.ID}))

	rr := doRequest(h, http.MethodPut, "/api/folder/"+parent.ID, map[string]any{"parent_id": child.ID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFolderDeprecationHeaders_OnFolderRoutes(t *testing.T) {
	h := newTestHandler(t)
	rr := doRequest(h, http.MethodGet, "/api/folders", nil)
	assert.Equal(t, "true", rr.Header().Get("Deprecation"))
	assert.NotEmpty(t, rr.Header().Get("Sunset"))
}

func TestPasteEndpoints_FolderIDQueryTriggersDeprecationHeaders(t *testing.T) {
	h := newTestHandler(t)
	f := decodeBody[model.Folder](t, doRequest(h, http.MethodPost, "/api/folder", map[string]any{"name": "A"}))

	rr := doRequest(h, http.MethodGet, "/api/pastes?folder_id="+f.ID, nil)
	assert.Equal(t, "true", rr.Header().Get("Deprecation"))
}
