// Package model defines the Paste, PasteMeta, and Folder records that make
// up LocalPaste's data model, plus the request/query DTOs the HTTP layer
// decodes into them.
package model

import (
	"strings"
	"time"
)

// Paste is the canonical, authoritative record stored under its id in the
// `pastes` tree.
type Paste struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Content          string    `json:"content"`
	Language         *string   `json:"language,omitempty"`
	LanguageIsManual bool      `json:"language_is_manual"`
	FolderID         *string   `json:"folder_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Tags             []string  `json:"tags"`
	IsMarkdown       bool      `json:"is_markdown"`
}

// PasteMeta is the derived, lighter-weight record kept in the `pastes_meta`
// tree and served by the list/search-meta endpoints.
type PasteMeta struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Language   *string   `json:"language,omitempty"`
	FolderID   *string   `json:"folder_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
	Tags       []string  `json:"tags"`
	ContentLen int       `json:"content_len"`
	IsMarkdown bool      `json:"is_markdown"`
}

// ToMeta projects a canonical Paste onto its derived PasteMeta. Per the meta
// mirrors canonical invariant, every field here must track Paste's.
func (p *Paste) ToMeta() *PasteMeta {
	return &PasteMeta{
		ID:         p.ID,
		Name:       p.Name,
		Language:   p.Language,
		FolderID:   p.FolderID,
		UpdatedAt:  p.UpdatedAt,
		Tags:       append([]string(nil), p.Tags...),
		ContentLen: len(p.Content),
		IsMarkdown: p.IsMarkdown,
	}
}

// Folder groups pastes into a tree with a denormalized paste count.
type Folder struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ParentID   *string `json:"parent_id,omitempty"`
	PasteCount uint64  `json:"paste_count"`
}

// CreatePasteRequest is the decoded body of POST /api/paste.
type CreatePasteRequest struct {
	Content          string   `json:"content"`
	Name             *string  `json:"name,omitempty"`
	Language         *string  `json:"language,omitempty"`
	LanguageIsManual *bool    `json:"language_is_manual,omitempty"`
	FolderID         *string  `json:"folder_id,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// UpdatePasteRequest is the decoded body of PUT /api/paste/{id}. Every field
// is optional; omission means "leave unchanged" except where the
// create-vs-update normalization rules say an empty string
// clears the field instead.
type UpdatePasteRequest struct {
	Content          *string  `json:"content,omitempty"`
	Name             *string  `json:"name,omitempty"`
	Language         *string  `json:"language,omitempty"`
	LanguageIsManual *bool    `json:"language_is_manual,omitempty"`
	FolderID         *string  `json:"folder_id,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// CreateFolderRequest is the decoded body of POST /api/folder.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

// UpdateFolderRequest is the decoded body of PUT /api/folder/{id}.
type UpdateFolderRequest struct {
	Name     *string `json:"name,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// ListQuery holds the parsed query parameters of GET /api/pastes and
// GET /api/pastes/meta.
type ListQuery struct {
	Limit    int
	FolderID *string
}

// SearchQuery holds the parsed query parameters of GET /api/search and
// GET /api/search/meta.
type SearchQuery struct {
	Q        string
	FolderID *string
	Language *string
	Limit    int
}

// NewPaste builds a new Paste, inferring its language via detectLanguage
// (injected by the caller to avoid an import cycle between model and
// internal/detect) and locking the language when detection resolves one, so
// that a concrete create-time detection is never silently overwritten by a
// later edit.
func NewPaste(id, content, name string, detectLanguage func(string) *string) *Paste {
	now := time.Now().UTC().Truncate(time.Millisecond)
	lang := detectLanguage(content)
	p := &Paste{
		ID:               id,
		Name:             name,
		Content:          content,
		Language:         lang,
		LanguageIsManual: lang != nil,
		CreatedAt:        now,
		UpdatedAt:        now,
		Tags:             []string{},
		IsMarkdown:       IsMarkdownContent(content),
	}
	return p
}

// NormalizeTags case-insensitively deduplicates tags while preserving the
// order of first occurrence, per the documented contract
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func isMarkdownHeadingLine(line string) bool {
	hashes := 0
	for hashes < len(line) && line[hashes] == '#' {
		hashes++
	}
	if hashes == 0 || hashes > 6 {
		return false
	}
	return hashes < len(line) && line[hashes] == ' '
}

func isMarkdownOrderedListLine(line string) bool {
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return false
	}
	return digits < len(line) && line[digits] == '.' &&
		digits+1 < len(line) && line[digits+1] == ' '
}

func isMarkdownListLine(line string) bool {
	if (strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ")) &&
		!strings.Contains(line, ": ") {
		return true
	}
	return isMarkdownOrderedListLine(line)
}

// IsMarkdownContent reports whether content appears to use markdown
// structure markers. It intentionally avoids broad single-character checks
// (such as raw '#') that produce false positives in source/config formats;
// ported from a similar structural heuristic.
func IsMarkdownContent(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	if strings.Contains(content, "```") || strings.Contains(content, "](") {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if isMarkdownHeadingLine(trimmed) || strings.HasPrefix(trimmed, "> ") || isMarkdownListLine(trimmed) {
			return true
		}
	}
	return false
}
