package rule

import "embed"

// builtinRulesFS embeds the built-in rules directory.
// Contains Vue, XSS, injection and secrets rules for JavaScript front-ends.
//
//go:embed rules/*.yml
var builtinRulesFS embed.FS
