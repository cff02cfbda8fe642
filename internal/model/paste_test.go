package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestNewPaste_LocksLanguageWhenDetected(t *testing.T) {
	p := NewPaste("id-1", "fn main() {}", "snippet", func(string) *string { return strp("rust") })

	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, "rust", *p.Language)
	assert.True(t, p.LanguageIsManual)
	assert.Equal(t, []string{}, p.Tags)
	assert.NotZero(t, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestNewPaste_NoDetectionLeavesUnmanaged(t *testing.T) {
	p := NewPaste("id-2", "plain text", "note", func(string) *string { return nil })

	assert.Nil(t, p.Language)
	assert.False(t, p.LanguageIsManual)
}

func TestPaste_ToMeta_MirrorsFields(t *testing.T) {
	p := NewPaste("id-3", "hello world", "greeting", func(string) *string { return nil })
	p.Tags = []string{"a", "b"}

	meta := p.ToMeta()

	assert.Equal(t, p.ID, meta.ID)
	assert.Equal(t, p.Name, meta.Name)
	assert.Equal(t, p.Language, meta.Language)
	assert.Equal(t, p.FolderID, meta.FolderID)
	assert.Equal(t, p.UpdatedAt, meta.UpdatedAt)
	assert.Equal(t, p.Tags, meta.Tags)
	assert.Equal(t, len(p.Content), meta.ContentLen)
	assert.Equal(t, p.IsMarkdown, meta.IsMarkdown)
}

func TestNormalizeTags_CaseInsensitiveDedup(t *testing.T) {
	tags := NormalizeTags([]string{"Go", "go", "RUST", "rust", "Shell"})
	assert.Equal(t, []string{"Go", "RUST", "Shell"}, tags)
}

func TestNormalizeTags_Empty(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeTags(nil))
}

func TestIsMarkdownContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"whitespace only", "   \n  ", false},
		{"fenced code block", "some text\n```go\ncode\n```", true},
		{"markdown link", "see [here](https://example.com)", true},
		{"heading", "# Title\nbody", true},
		{"deep heading", "###### Title", true},
		{"too many hashes not heading", "####### not a heading", false},
		{"blockquote", "> quoted text", true},
		{"unordered list", "- item one\n- item two", true},
		{"unordered list with colon rejected", "- key: value", false},
		{"ordered list", "1. first\n2. second", true},
		{"plain source code", "func main() {\n\tprintln(\"hi\")\n}", false},
		{"plain text", "just a sentence about nothing in particular", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMarkdownContent(tt.content))
		})
	}
}
