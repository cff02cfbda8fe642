// Package detect implements LocalPaste's language-detection adapter:
// canonicalization, an optional model-backed classifier, and structural
// heuristics that refine or substitute for it.
//
// Grounded on the project's earlier Rust core's crates/localpaste_core/src/detection/mod.rs
// (refinement algorithm, looksLikeYaml/looksLikePlainCSS) and canonical.rs
// (alias table, manual options); the magika model classifier itself is a
// Python/ONNX component outside this repository's scope, so it is modeled
// here as an optional, nil-safe Classifier interface rather than ported.
package detect

import "strings"

// Classifier is a model-backed label predictor. LocalPaste never ships a
// concrete implementation (the magika model is a Python/ONNX artifact out of
// scope per the documented "external collaborators" framing); callers that
// want it wire in their own implementation. DetectLanguage works correctly
// with a nil Classifier, falling straight to the heuristic fallback.
type Classifier interface {
	// Classify returns a raw (not yet canonicalized) label, or "" if the
	// classifier has no opinion.
	Classify(content string) string
}

// DetectLanguage implements the documented detect_language: optionally
// consult classifier, refine yaml/scss candidates with structural
// heuristics, and otherwise fall back to the pure heuristic. Returns nil
// when no language could be determined.
func DetectLanguage(content string, classifier Classifier) *string {
	if classifier != nil {
		if raw := classifier.Classify(content); raw != "" {
			canonical := Canonicalize(raw)
			if refined, ok := refineLabel(canonical, content); ok {
				return &refined
			}
		}
	}

	label := heuristicDetect(content)
	if label == "" {
		return nil
	}
	canonical := Canonicalize(label)
	if canonical == "" || canonical == "text" {
		return nil
	}
	return &canonical
}

// refineLabel applies steps 2-3 of the design to a classifier-produced
// candidate label.
func refineLabel(label, content string) (string, bool) {
	if label == "" || label == "text" {
		return "", false
	}
	if label == "yaml" && !looksLikeYAML(content) {
		return "", false
	}
	if label == "scss" && looksLikePlainCSS(content) {
		return "css", true
	}
	return label, true
}

// looksLikeYAML reports whether content structurally resembles a YAML
// document: a leading "---" document separator, or at least two
// mapping/list-shaped meaningful lines (or exactly one when the entire
// document is a single meaningful line).
func looksLikeYAML(content string) bool {
	trimmed := strings.TrimLeft(content, " \t\n\r")
	if strings.HasPrefix(trimmed, "---") {
		return true
	}

	yamlPairs := 0
	meaningfulLines := 0
	var firstMeaningfulLine string
	hasFirst := false

	lines := strings.Split(content, "\n")
	if len(lines) > 512 {
		lines = lines[:512]
	}
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		meaningfulLines++
		if !hasFirst {
			firstMeaningfulLine = t
			hasFirst = true
		}
		if strings.HasPrefix(t, "- ") || strings.Contains(t, ": ") || (strings.HasSuffix(t, ":") && len(t) > 1) {
			yamlLike := false
			if strings.HasSuffix(t, ":") && len(t) > 1 {
				yamlLike = true
			} else {
				yamlLike = looksLikeSingleLineYAMLMapping(t)
			}
			if yamlLike {
				yamlPairs++
			}
		}
	}

	if yamlPairs >= 2 {
		return true
	}
	if yamlPairs == 1 && meaningfulLines == 1 {
		return looksLikeSingleLineYAMLMapping(firstMeaningfulLine)
	}
	return false
}

func looksLikeSingleLineYAMLMapping(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "- ") {
		return true
	}

	idx := strings.Index(trimmed, ":")
	if idx < 0 {
		return false
	}
	key := strings.TrimSpace(trimmed[:idx])
	value := strings.TrimSpace(trimmed[idx+1:])
	if key == "" {
		return false
	}
	hasWhitespace := strings.ContainsAny(key, " \t")
	quoted := (strings.HasPrefix(key, `"`) && strings.HasSuffix(key, `"`)) ||
		(strings.HasPrefix(key, "'") && strings.HasSuffix(key, "'"))
	if hasWhitespace && !quoted {
		return false
	}

	if strings.Contains(value, ";") {
		return false
	}
	if strings.ContainsAny(value, "{}") {
		return looksLikeYAMLFlowMapping(value)
	}
	if strings.ContainsAny(value, "[]") {
		return false
	}
	for _, r := range value {
		if r < 0x20 {
			return false
		}
	}
	if !strings.HasPrefix(value, `"`) && !strings.HasPrefix(value, "'") && len(strings.Fields(value)) > 3 {
		return false
	}
	return true
}

func looksLikeYAMLFlowMapping(value string) bool {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return false
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return true
	}
	return strings.Contains(inner, ":") && !strings.Contains(inner, ";")
}

// looksLikePlainCSS reports whether content has CSS block shape without any
// SCSS-specific tokens, used to refine a classifier's "scss" guess down to
// "css" for plain stylesheets.
func looksLikePlainCSS(content string) bool {
	lower := strings.ToLower(content)
	hasCSSBlock := strings.Contains(lower, "{") && strings.Contains(lower, "}") &&
		strings.Contains(lower, ":") && (strings.Contains(lower, ";") || strings.Contains(lower, "\n"))
	hasSCSSTokens := strings.Contains(lower, "$") ||
		strings.Contains(lower, "@mixin") ||
		strings.Contains(lower, "@include") ||
		strings.Contains(lower, "@extend") ||
		strings.Contains(lower, "#{")
	return hasCSSBlock && !hasSCSSTokens
}

// Prewarm initializes a model-backed classifier early, if one is supplied,
// so first-request latency doesn't pay model load-time cost.
func Prewarm(classifier Classifier) {
	if classifier == nil {
		return
	}
	classifier.Classify("")
}
