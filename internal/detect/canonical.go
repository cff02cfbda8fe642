package detect

import "strings"

// aliasTable maps raw labels (already lower-cased and trimmed) onto the
// canonical label this service stores and compares against. Ported from
// the project's earlier Rust core's detection/canonical.rs alias table.
//
// scss/sass are intentionally NOT aliased to css here. The scss-vs-css
// distinction is a separate structural-heuristic refinement step
// (refineLabel, in detect.go)
// applied after canonicalization, not as a canonicalization alias. The
// original Rust source's canonical.rs folds scss/sass into css directly,
// which would make its own scss-specific refinement branch unreachable —
// we follow the more coherent, explicitly documented spec.md behavior
// instead of replicating that inconsistency.
var aliasTable = map[string]string{
	"c#":          "cs",
	"csharp":      "cs",
	"c++":         "cpp",
	"cplusplus":   "cpp",
	"bash":        "shell",
	"sh":          "shell",
	"zsh":         "shell",
	"shellscript": "shell",
	"yml":         "yaml",
	"js":          "javascript",
	"jsx":         "javascript",
	"mjs":         "javascript",
	"ts":          "typescript",
	"tsx":         "typescript",
	"golang":      "go",
	"py":          "python",
	"py3":         "python",
	"rb":          "ruby",
	"kt":          "kotlin",
	"kts":         "kotlin",
	"rs":          "rust",
	"md":          "markdown",
	"htm":         "html",
	"plaintext":   "text",
	"plain":       "text",
	"txt":         "text",
	"none":        "text",
	"unknown":     "text",
}

// Canonicalize lower-cases and trims label, then applies the fixed alias
// table. Idempotent: Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	if alias, ok := aliasTable[lower]; ok {
		return alias
	}
	return lower
}

// ManualOption is one entry of the manual-selection language picker the GUI
// presents (label shown to the user, canonical value stored).
type ManualOption struct {
	Label string
	Value string
}

// ManualLanguageOptions lists the languages a user can manually pick,
// ordered for display. Ported from original_source's
// MANUAL_LANGUAGE_OPTIONS table.
var ManualLanguageOptions = []ManualOption{
	{"Plain Text", "text"},
	{"Bash/Shell", "shell"},
	{"C", "c"},
	{"C++", "cpp"},
	{"C#", "cs"},
	{"CSS", "css"},
	{"Dart", "dart"},
	{"Dockerfile", "dockerfile"},
	{"Elixir", "elixir"},
	{"Go", "go"},
	{"GraphQL", "graphql"},
	{"HTML", "html"},
	{"Java", "java"},
	{"JavaScript", "javascript"},
	{"JSON", "json"},
	{"Kotlin", "kotlin"},
	{"Lua", "lua"},
	{"Markdown", "markdown"},
	{"PHP", "php"},
	{"PowerShell", "powershell"},
	{"Python", "python"},
	{"Ruby", "ruby"},
	{"Rust", "rust"},
	{"SCSS", "scss"},
	{"SQL", "sql"},
	{"Swift", "swift"},
	{"TOML", "toml"},
	{"TypeScript", "typescript"},
	{"YAML", "yaml"},
	{"Zig", "zig"},
}

// ManualOptionLabel returns the display label for a canonical value, or the
// value itself when no manual option matches.
func ManualOptionLabel(value string) string {
	for _, opt := range ManualLanguageOptions {
		if opt.Value == value {
			return opt.Label
		}
	}
	return value
}
