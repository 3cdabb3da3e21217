package llm

import (
	"regexp"
	"strings"
)

// FixPattern defines a search-and-fix pattern applied to malformed model output.
type FixPattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Repairer recovers JSON objects from model output that failed a strict parse.
type Repairer struct {
	patterns []FixPattern
}

// NewRepairer creates a repairer with the predefined fix patterns.
func NewRepairer() (r *Repairer) {
	r = &Repairer{patterns: buildJSONFixPatterns()}
	return r
}

// Repair trims text to its outermost braces and applies the fix patterns. applied
// lists the patterns that changed something. ok is false when there are no braces.
func (r *Repairer) Repair(text string) (fixed string, applied []string, ok bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fixed, applied, ok
	}

	fixed = text[start : end+1]
	for _, pattern := range r.patterns {
		if pattern.Pattern.MatchString(fixed) {
			fixed = pattern.Pattern.ReplaceAllString(fixed, pattern.Replacement)
			applied = append(applied, pattern.Name)
		}
	}

	ok = true
	return fixed, applied, ok
}

// buildJSONFixPatterns creates patterns for common model JSON mistakes.
func buildJSONFixPatterns() (patterns []FixPattern) {
	patterns = []FixPattern{
		{
			Name:        "Smart double quotes",
			Pattern:     regexp.MustCompile(`[\x{201C}\x{201D}]`),
			Replacement: `"`,
		},
		{
			Name:        "Trailing comma before closing brace",
			Pattern:     regexp.MustCompile(`,\s*}`),
			Replacement: `}`,
		},
		{
			Name:        "Trailing comma before closing bracket",
			Pattern:     regexp.MustCompile(`,\s*]`),
			Replacement: `]`,
		},
		{
			Name:        "Missing comma between string and key",
			Pattern:     regexp.MustCompile(`"\s*\n(\s*)"([^"\n]+)"\s*:`),
			Replacement: "\",\n$1\"$2\":",
		},
	}

	return patterns
}

// stripMarkdownCodeFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripMarkdownCodeFences(text string) (cleaned string) {
	cleaned = strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	// Drop the opening fence line.
	newline := strings.IndexByte(cleaned, '\n')
	if newline < 0 {
		cleaned = ""
		return cleaned
	}
	cleaned = cleaned[newline+1:]

	cleaned = strings.TrimRight(cleaned, " \r\n")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimRight(cleaned, " \r\n")

	return cleaned
}
