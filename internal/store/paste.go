package store

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/detect"
	"github.com/pszemraj/localpaste/internal/kv"
	"github.com/pszemraj/localpaste/internal/model"
)

// defaultListLimit mirrors the documented "limit ≤ 100, default 50" contract;
// the HTTP layer clamps the upper bound, the store clamps non-positive
// values so every direct (non-HTTP) caller gets a sane default too.
const defaultListLimit = 50

// PasteStore owns the `pastes` canonical tree plus the derived `pastes_meta`
// tree and `pastes_by_updated` recency index.
type PasteStore struct {
	db         *kv.DB
	log        zerolog.Logger
	classifier detect.Classifier
}

// NewPasteStore constructs a PasteStore. classifier may be nil; detection
// then runs purely on the structural heuristic (internal/detect is nil-safe).
func NewPasteStore(db *kv.DB, log zerolog.Logger, classifier detect.Classifier) *PasteStore {
	return &PasteStore{db: db, log: log.With().Str("component", "paste_store").Logger(), classifier: classifier}
}

// DetectLanguage runs this store's configured classifier plus refinement and
// heuristic fallback over content. Exposed so the HTTP layer and
// model.NewPaste (which takes a detector function to avoid an import cycle)
// share one detection path.
func (s *PasteStore) DetectLanguage(content string) *string {
	return detect.DetectLanguage(content, s.classifier)
}

// IsFaulted reports whether derived state is currently considered untrusted.
func (s *PasteStore) IsFaulted() bool { return IsFaulted(s.db) }

// Create writes a new canonical paste plus its derived meta and recency
// rows. Rejects pastes that carry a folder_id: folder-scoped creates must go
// through the transaction layer's CreatePasteWithFolder, which needs to
// verify the folder first.
func (s *PasteStore) Create(p *model.Paste) error {
	if p.FolderID != nil {
		return model.NewBadRequest("create: paste %s has folder_id set; use the transactional create-with-folder operation", p.ID)
	}
	return s.InsertCanonical(p)
}

// InsertCanonical writes p's canonical row (failing with model.ErrConflict
// if the id already exists) and its derived rows, marking the index faulted
// on derived-write failure. Unlike Create, it does not reject a set
// folder_id: it is the low-level primitive the transaction layer composes
// under the folder-mutex after validating the destination folder itself.
func (s *PasteStore) InsertCanonical(p *model.Paste) error {
	existing, err := s.db.Get(TreePastes, p.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return model.ErrConflict
	}
	if err := s.db.Put(TreePastes, p.ID, model.EncodePaste(p)); err != nil {
		return err
	}
	if err := s.writeDerivedNew(p); err != nil {
		markFaulted(s.db, s.log, "create", p.ID, err)
	}
	return nil
}

func (s *PasteStore) writeDerivedNew(p *model.Paste) error {
	if err := s.db.Put(TreePastesMeta, p.ID, model.EncodePasteMeta(p.ToMeta())); err != nil {
		return err
	}
	return s.db.Put(TreePastesByUpdated, string(model.RecencyKey(p.UpdatedAt, p.ID)), []byte(p.ID))
}

// Get returns the canonical paste with id, or model.ErrNotFound if absent.
// A codec failure surfaces as a Storage error.
func (s *PasteStore) Get(id string) (*model.Paste, error) {
	raw, err := s.db.Get(TreePastes, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, model.ErrNotFound
	}
	p, err := model.DecodePaste(raw)
	if err != nil {
		return nil, model.NewStorage("decode paste "+id, err)
	}
	return p, nil
}

// UpdatePatch describes the optional fields an update may change. Fields left
// nil/unset are left as-is. folder_id is deliberately absent: per spec.md
// §4.4 it can only be changed via the move helper in internal/txn.
type UpdatePatch struct {
	Content          *string
	Name             *string
	Language         *string
	LanguageIsManual *bool
	Tags             []string
	TagsSet          bool
}

// Update atomically applies patch to the canonical row for id and maintains
// derived state. See updateCore for the exact field semantics.
func (s *PasteStore) Update(id string, patch UpdatePatch) (*model.Paste, error) {
	return s.updateCore(id, patch, nil, false)
}

// UpdateWithFolderChange is Update plus an unconditional folder_id change to
// newFolderID. It is the primitive the transaction layer's move helper uses
// to write the moved paste once the destination folder has been reserved;
// ordinary callers must use Update, which refuses to touch folder_id.
func (s *PasteStore) UpdateWithFolderChange(id string, patch UpdatePatch, newFolderID *string) (*model.Paste, error) {
	return s.updateCore(id, patch, newFolderID, true)
}

func (s *PasteStore) updateCore(id string, patch UpdatePatch, newFolderID *string, changeFolder bool) (*model.Paste, error) {
	var oldPaste, newPaste *model.Paste
	err := s.db.RMW(TreePastes, id, func(prior []byte) ([]byte, bool, error) {
		if prior == nil {
			return nil, false, model.ErrNotFound
		}
		cur, err := model.DecodePaste(prior)
		if err != nil {
			return nil, false, model.NewSerialization("decode paste "+id, err)
		}
		oldPaste = cur

		next := *cur
		next.Tags = append([]string(nil), cur.Tags...)

		contentChanged := false
		if patch.Content != nil {
			next.Content = *patch.Content
			next.IsMarkdown = model.IsMarkdownContent(next.Content)
			contentChanged = true
		}
		if patch.Name != nil {
			next.Name = *patch.Name
		}
		if patch.Language != nil {
			next.Language = patch.Language
			next.LanguageIsManual = true
		}
		if patch.LanguageIsManual != nil {
			next.LanguageIsManual = *patch.LanguageIsManual
		}
		if patch.TagsSet {
			next.Tags = model.NormalizeTags(patch.Tags)
		}
		if changeFolder {
			next.FolderID = newFolderID
		}
		if contentChanged && patch.Language == nil && !next.LanguageIsManual {
			if detected := s.DetectLanguage(next.Content); detected != nil {
				next.Language = detected
			}
		}
		if contentChanged || changeFolder {
			next.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
		}

		newPaste = &next
		return model.EncodePaste(&next), true, nil
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	if err := s.writeDerivedUpdate(oldPaste, newPaste); err != nil {
		markFaulted(s.db, s.log, "update", id, err)
	}
	return newPaste, nil
}

func (s *PasteStore) writeDerivedUpdate(old, next *model.Paste) error {
	if err := s.db.Put(TreePastesMeta, next.ID, model.EncodePasteMeta(next.ToMeta())); err != nil {
		return err
	}
	oldKey := string(model.RecencyKey(old.UpdatedAt, old.ID))
	newKey := string(model.RecencyKey(next.UpdatedAt, next.ID))
	if oldKey != newKey {
		if err := s.db.Delete(TreePastesByUpdated, oldKey); err != nil {
			return err
		}
	}
	return s.db.Put(TreePastesByUpdated, newKey, []byte(next.ID))
}

// Delete removes the canonical paste and its derived rows for id. Rejects
// pastes that carry a folder_id: folder-scoped deletes must go through
// DeletePasteWithFolder in internal/txn, which needs the folder id to
// decrement its count. Returns (false, nil) if id does not exist.
func (s *PasteStore) Delete(id string) (bool, error) {
	p, err := s.Get(id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if p.FolderID != nil {
		return false, model.NewBadRequest("delete: paste %s has folder_id set; use the transactional delete-with-folder operation", id)
	}
	return true, s.removeRow(p)
}

// DeleteAndReturn is Delete but returns the deleted record.
func (s *PasteStore) DeleteAndReturn(id string) (*model.Paste, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if p.FolderID != nil {
		return nil, model.NewBadRequest("delete: paste %s has folder_id set; use the transactional delete-with-folder operation", id)
	}
	if err := s.removeRow(p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveCanonical deletes the canonical row for id and its derived rows
// unconditionally (no folder_id check) and returns the record as it stood
// before deletion. It is the primitive internal/txn's
// DeletePasteWithFolder uses: that operation needs the paste's folder_id
// *as recorded*, read in the same step as the delete, to avoid acting on a
// caller-supplied folder id that may have gone stale under a concurrent move.
func (s *PasteStore) RemoveCanonical(id string) (*model.Paste, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.removeRow(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PasteStore) removeRow(p *model.Paste) error {
	if err := s.db.Delete(TreePastes, p.ID); err != nil {
		return err
	}
	if err := s.removeDerived(p); err != nil {
		markFaulted(s.db, s.log, "delete", p.ID, err)
	}
	return nil
}

func (s *PasteStore) removeDerived(p *model.Paste) error {
	if err := s.db.Delete(TreePastesMeta, p.ID); err != nil {
		return err
	}
	return s.db.Delete(TreePastesByUpdated, string(model.RecencyKey(p.UpdatedAt, p.ID)))
}

func matchesFolder(folderID *string, candidate *string) bool {
	if folderID == nil {
		return true
	}
	return candidate != nil && *candidate == *folderID
}

// List returns up to limit canonical pastes, most-recent first, optionally
// filtered by folder. Reads the recency index in the fault-free case; falls
// back to a canonical scan when the index is faulted.
func (s *PasteStore) List(limit int, folderID *string) ([]*model.Paste, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if s.IsFaulted() {
		return s.listFallback(limit, folderID)
	}

	out := make([]*model.Paste, 0, limit)
	err := s.db.ForEach(TreePastesByUpdated, func(_, value []byte) (bool, error) {
		id := string(value)
		raw, err := s.db.Get(TreePastes, id)
		if err != nil {
			return false, err
		}
		if raw == nil {
			return true, nil // ghost recency row; reconciler's job to clean up
		}
		p, err := model.DecodePaste(raw)
		if err != nil {
			s.log.Warn().Str("paste_id", id).Err(err).Msg("skipping undecodable paste during list")
			return true, nil
		}
		if !matchesFolder(folderID, p.FolderID) {
			return true, nil
		}
		out = append(out, p)
		return len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PasteStore) listFallback(limit int, folderID *string) ([]*model.Paste, error) {
	all, err := s.scanAll()
	if err != nil {
		return nil, err
	}
	filtered := make([]*model.Paste, 0, len(all))
	for _, p := range all {
		if matchesFolder(folderID, p.FolderID) {
			filtered = append(filtered, p)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].UpdatedAt.Equal(filtered[j].UpdatedAt) {
			return filtered[i].UpdatedAt.After(filtered[j].UpdatedAt)
		}
		return filtered[i].ID < filtered[j].ID
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// ListMeta is List for PasteMeta records, reading the lighter `pastes_meta`
// tree instead of canonical rows in the fault-free path.
func (s *PasteStore) ListMeta(limit int, folderID *string) ([]*model.PasteMeta, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if s.IsFaulted() {
		all, err := s.scanAll()
		if err != nil {
			return nil, err
		}
		metas := make([]*model.PasteMeta, 0, len(all))
		for _, p := range all {
			metas = append(metas, p.ToMeta())
		}
		sort.Slice(metas, func(i, j int) bool {
			if !metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
				return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
			}
			return metas[i].ID < metas[j].ID
		})
		if len(metas) > limit {
			metas = metas[:limit]
		}
		return metas, nil
	}

	out := make([]*model.PasteMeta, 0, limit)
	err := s.db.ForEach(TreePastesByUpdated, func(_, value []byte) (bool, error) {
		id := string(value)
		raw, err := s.db.Get(TreePastesMeta, id)
		if err != nil {
			return false, err
		}
		if raw == nil {
			return true, nil
		}
		m, err := model.DecodePasteMeta(raw)
		if err != nil {
			s.log.Warn().Str("paste_id", id).Err(err).Msg("skipping undecodable meta during list")
			return true, nil
		}
		if !matchesFolder(folderID, m.FolderID) {
			return true, nil
		}
		out = append(out, m)
		return len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PasteStore) scanAll() ([]*model.Paste, error) {
	var out []*model.Paste
	err := s.db.ForEach(TreePastes, func(key, value []byte) (bool, error) {
		p, err := model.DecodePaste(value)
		if err != nil {
			s.log.Warn().Str("paste_id", string(key)).Err(err).Msg("skipping undecodable paste during scan")
			return true, nil
		}
		out = append(out, p)
		return true, nil
	})
	return out, err
}

func searchScore(p *model.Paste, ql string, includeContent bool) int {
	score := 0
	if strings.Contains(strings.ToLower(p.Name), ql) {
		score += 10
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), ql) {
			score += 5
			break
		}
	}
	if includeContent && strings.Contains(strings.ToLower(p.Content), ql) {
		score++
	}
	return score
}

func languageMatches(p *model.Paste, language *string) bool {
	if language == nil {
		return true
	}
	want := detect.Canonicalize(*language)
	return p.Language != nil && strings.EqualFold(*p.Language, want)
}

// Search performs a case-insensitive substring search over name, tags, and
// content: score = 10·name_match + 5·any_tag_match + 1·content_match,
// sorted by descending score then recency. A
// blank/whitespace-only query returns no results.
func (s *PasteStore) Search(q string, limit int, folderID, language *string) ([]*model.Paste, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*model.Paste{}, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	ql := strings.ToLower(q)

	all, err := s.scanAll()
	if err != nil {
		return nil, err
	}
	type scored struct {
		p     *model.Paste
		score int
	}
	var hits []scored
	for _, p := range all {
		if !matchesFolder(folderID, p.FolderID) || !languageMatches(p, language) {
			continue
		}
		if score := searchScore(p, ql, true); score > 0 {
			hits = append(hits, scored{p, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].p.UpdatedAt.After(hits[j].p.UpdatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*model.Paste, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out, nil
}

// SearchMeta is Search restricted to name and tags (no content substring
// match), returning PasteMeta records for lightweight GUI lists.
func (s *PasteStore) SearchMeta(q string, limit int, folderID, language *string) ([]*model.PasteMeta, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*model.PasteMeta{}, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	ql := strings.ToLower(q)

	all, err := s.scanAll()
	if err != nil {
		return nil, err
	}
	type scored struct {
		m     *model.PasteMeta
		score int
	}
	var hits []scored
	for _, p := range all {
		if !matchesFolder(folderID, p.FolderID) || !languageMatches(p, language) {
			continue
		}
		if score := searchScore(p, ql, false); score > 0 {
			hits = append(hits, scored{p.ToMeta(), score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].m.UpdatedAt.After(hits[j].m.UpdatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*model.PasteMeta, len(hits))
	for i, h := range hits {
		out[i] = h.m
	}
	return out, nil
}
