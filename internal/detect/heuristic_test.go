package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicDetect_LanguageSignatures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"rust fn", "fn main() {\n    println!(\"hi\");\n}", "rust"},
		{"python def", "def handler(event):\n    return event", "python"},
		{"javascript arrow", "const x = () => {\n  return 1;\n};", "javascript"},
		{"shell shebang", "#!/bin/bash\necho hello", "shell"},
		{"toml", "[tool]\nname = \"example\"\nversion = \"1\"", "toml"},
		{"kotlin", "fun main() {\n    println(\"hi\")\n}", "kotlin"},
		{"swift", "import Foundation\nfunc greet() -> String {\n    return \"hi\"\n}", "swift"},
		{"dart", "import 'package:flutter/material.dart';\nvoid main() {}", "dart"},
		{"zig", "const std = @import(\"std\");\npub fn main() void {}", "zig"},
		{"lua", "local x = 1\nfunction test()\nend", "lua"},
		{"perl", "use strict;\nuse warnings;\nmy $x = 1;", "perl"},
		{"elixir", "defmodule MyApp do\nend", "elixir"},
		{"powershell", "param($Name)\nWrite-Host $Name", "powershell"},
		{"markdown bullet", "- item", "markdown"},
		{"yaml shape", "name: example\nversion: 1\n", "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, heuristicDetect(tt.content))
		})
	}
}

func TestHeuristicDetect_NegativeCases(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"plain prose", "just a sentence about nothing in particular"},
		{"status report", "status report:\ndone\n"},
		{"powershell missing write-host", "param(foo)\nvalue = 1\n"},
		{"note mentioning use strict", "note: use strict; while migrating config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "", heuristicDetect(tt.content))
		})
	}
}

func TestDetectShebang_Variants(t *testing.T) {
	tests := map[string]string{
		"#!/bin/bash\necho hi":         "shell",
		"#!/usr/bin/env python3\npass": "python",
		"#!/usr/bin/env node\n1":       "javascript",
		"#!/usr/bin/perl\n1":           "perl",
		"#!/usr/bin/env ruby\n1":       "ruby",
		"#!/usr/bin/env pwsh\n1":       "powershell",
	}
	for content, want := range tests {
		label, ok := detectShebang(content)
		assert.True(t, ok)
		assert.Equal(t, want, label)
	}
}
