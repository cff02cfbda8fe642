package detect

import "strings"

// heuristicDetect is the pure structural fallback used when no model-backed
// classifier is available (or it declined to answer): shebangs,
// language-signature tokens, and brace/keyword shape. Reconstructed from
// this step's description together with the detection test-case
// corpus in the project's earlier Rust core's detection/tests.rs (the heuristic.rs source
// file itself was not present in the retrieved pack). Returns a raw label
// (not yet canonicalized), or "" when nothing matches.
func heuristicDetect(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	if label, ok := detectShebang(content); ok {
		return label
	}
	if looksLikeMarkdown(content) {
		return "markdown"
	}
	if looksLikeYAML(content) {
		return "yaml"
	}
	if looksLikeTOML(content) {
		return "toml"
	}

	switch {
	case strings.Contains(content, "param(") && strings.Contains(content, "Write-Host"):
		return "powershell"
	case strings.Contains(content, "defmodule"):
		return "elixir"
	case strings.Contains(content, "use strict;") && strings.Contains(content, "my $"):
		return "perl"
	case looksLikeLua(content):
		return "lua"
	case strings.Contains(content, "import 'package:"):
		return "dart"
	case strings.Contains(content, `@import("std")`):
		return "zig"
	case strings.Contains(content, "fun "):
		return "kotlin"
	case strings.Contains(content, "fn "):
		return "rust"
	case strings.Contains(content, "package ") && strings.Contains(content, "func "):
		return "go"
	case strings.Contains(content, "func "):
		return "swift"
	case strings.Contains(content, "def "):
		return "python"
	case looksLikeJavaScript(content):
		return "javascript"
	}

	return ""
}

func detectShebang(content string) (string, bool) {
	lines := strings.SplitN(content, "\n", 2)
	if len(lines) == 0 {
		return "", false
	}
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "#!") {
		return "", false
	}
	switch {
	case strings.Contains(first, "bash"), strings.Contains(first, "/sh"), strings.Contains(first, "zsh"):
		return "shell", true
	case strings.Contains(first, "python"):
		return "python", true
	case strings.Contains(first, "node"):
		return "javascript", true
	case strings.Contains(first, "perl"):
		return "perl", true
	case strings.Contains(first, "ruby"):
		return "ruby", true
	case strings.Contains(first, "pwsh"), strings.Contains(first, "powershell"):
		return "powershell", true
	}
	return "shell", true
}

// looksLikeMarkdown catches simple heading/bullet-only documents that
// looksLikeYAML would otherwise also accept (a single "- item" line, for
// instance, satisfies the single-line-yaml-mapping shape); markdown
// structure without any key:value-shaped content takes priority.
func looksLikeMarkdown(content string) bool {
	lines := strings.Split(content, "\n")
	meaningful := 0
	markdownish := 0
	for _, raw := range lines {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		meaningful++
		if isMarkdownHeading(t) {
			markdownish++
			continue
		}
		if (strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ")) && !strings.Contains(t, ": ") {
			markdownish++
			continue
		}
	}
	return meaningful > 0 && markdownish == meaningful
}

func isMarkdownHeading(line string) bool {
	hashes := 0
	for hashes < len(line) && line[hashes] == '#' {
		hashes++
	}
	return hashes > 0 && hashes <= 6 && hashes < len(line) && line[hashes] == ' '
}

func looksLikeTOML(content string) bool {
	if strings.ContainsAny(content, "{}") {
		return false
	}
	hasSection := false
	hasAssignment := false
	for _, raw := range strings.Split(content, "\n") {
		t := strings.TrimSpace(raw)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		if strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]") {
			hasSection = true
			continue
		}
		if idx := strings.Index(t, "="); idx > 0 {
			key := strings.TrimSpace(t[:idx])
			if key != "" && !strings.ContainsAny(key, " \t:") {
				hasAssignment = true
			}
		}
	}
	return hasSection && hasAssignment
}

func looksLikeLua(content string) bool {
	return strings.Contains(content, "local ") &&
		strings.Contains(content, "function") &&
		strings.Contains(content, "\nend")
}

func looksLikeJavaScript(content string) bool {
	if strings.Contains(content, "=>") && (strings.Contains(content, "const ") || strings.Contains(content, "let ")) {
		return true
	}
	return strings.Contains(content, "function ")
}
