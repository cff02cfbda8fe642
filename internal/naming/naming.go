// Package naming generates default display names for pastes that omit one on
// create, and derives a name from content when possible. Ported from
// the naming module in LocalPaste's earlier Rust implementation.
package naming

import (
	"math/rand"
	"strconv"
	"strings"
)

var adjectives = []string{
	"swift", "quiet", "bold", "calm", "eager", "brave", "clever", "gentle",
	"happy", "lively", "mellow", "nimble", "proud", "quick", "sharp", "smooth",
	"steady", "sturdy", "sunny", "tidy", "vivid", "witty", "zesty", "amber",
	"azure", "coral", "crimson", "golden", "indigo", "ivory", "jade", "olive",
	"rustic", "silver", "violet", "frosty", "misty", "dusty", "breezy", "rosy",
	"cosmic", "lunar", "solar", "stellar", "arctic", "tropic", "ancient",
	"tiny", "giant", "humble", "noble", "polished", "rapid", "silent",
	"radiant", "distant", "curious", "earnest", "faithful", "graceful",
	"hidden", "jolly", "keen", "loyal", "merry", "patient", "restless",
	"tender", "urban", "vast", "wandering", "young",
}

var nouns = []string{
	"falcon", "otter", "badger", "heron", "lynx", "raven", "sparrow", "wolf",
	"fox", "hare", "owl", "panther", "tiger", "whale", "dolphin", "eagle",
	"beetle", "cricket", "firefly", "mantis", "moth", "spider", "canyon",
	"glacier", "harbor", "meadow", "orchard", "prairie", "ridge", "summit",
	"valley", "coast", "delta", "forest", "island", "lagoon", "oasis",
	"plateau", "river", "boulder", "pebble", "ember", "lantern", "compass",
	"anchor", "beacon", "bridge", "cabin", "garden", "ledger", "mosaic",
	"orbit", "pulse", "quill", "scroll", "tunnel", "vessel", "willow",
	"cedar", "maple", "birch", "pine", "aspen", "juniper", "thistle",
	"clover", "heather", "lichen", "moss", "fern", "thorn",
}

// GenerateName returns a random "adjective-noun" display name, e.g. "swift-falcon".
func GenerateName() string {
	adj := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	return adj + "-" + noun
}

// GenerateUniqueName calls GenerateName until exists returns false for the
// candidate, falling back to a numeric suffix after a bounded number of
// attempts to guarantee termination. The suffix search is bounded too: if
// every suffixed candidate it tries is taken, it returns base + "-2"
// without a further exists check.
func GenerateUniqueName(exists func(string) bool) string {
	for attempt := 0; attempt < 20; attempt++ {
		candidate := GenerateName()
		if !exists(candidate) {
			return candidate
		}
	}
	base := GenerateName()
	for suffix := 2; suffix < 1000; suffix++ {
		candidate := base + "-" + strconv.Itoa(suffix)
		if !exists(candidate) {
			return candidate
		}
	}
	return base + "-2"
}

const maxDerivedNameLen = 48

var definitionPrefixesByLanguage = map[string][]string{
	"rust":       {"fn ", "struct ", "enum ", "trait ", "impl "},
	"python":     {"def ", "class ", "async def "},
	"javascript": {"function ", "class ", "const ", "export "},
	"typescript": {"function ", "class ", "const ", "export "},
	"go":         {"func ", "type "},
}

func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "/*")
}

func truncateName(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDerivedNameLen {
		return s
	}
	return strings.TrimSpace(s[:maxDerivedNameLen])
}

// extractDefinitionName scans content for the first line beginning with one
// of language's definition-signature prefixes (skipping comment lines) and
// returns a name derived from it.
func extractDefinitionName(content, language string) (string, bool) {
	prefixes, ok := definitionPrefixesByLanguage[language]
	if !ok {
		return "", false
	}
	for _, rawLine := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(rawLine)
		if trimmed == "" || isCommentLine(trimmed) {
			continue
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(trimmed, prefix) {
				rest := strings.TrimPrefix(trimmed, prefix)
				return truncateName(rest), true
			}
		}
	}
	return "", false
}

// deriveNameFromContent tries a markdown heading first when content is
// unlabeled or explicitly markdown, otherwise goes straight to
// language-aware definition-name extraction — a "#"-prefixed line is a
// heading in markdown but a comment in Python, shell, and friends, so
// treating every leading "#" as a heading would swallow those languages'
// comment lines instead of skipping them.
func deriveNameFromContent(content string, language *string) (string, bool) {
	if language == nil || *language == "markdown" {
		for _, rawLine := range strings.Split(content, "\n") {
			trimmed := strings.TrimSpace(rawLine)
			if strings.HasPrefix(trimmed, "#") {
				heading := strings.TrimLeft(trimmed, "#")
				heading = strings.TrimSpace(heading)
				if heading != "" {
					return truncateName(heading), true
				}
			}
		}
	}
	if language != nil {
		if name, ok := extractDefinitionName(content, *language); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// GenerateNameForContent derives a name from content when possible,
// otherwise falls back to a random adjective-noun pair.
func GenerateNameForContent(content string, language *string) string {
	if name, ok := deriveNameFromContent(content, language); ok {
		return name
	}
	return GenerateName()
}
