package section

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HeaderFontSize is the run size in points above which a paragraph reads as a header.
const HeaderFontSize = 12.0

// ShortLineWords is the word count below which a raw-text line is considered short.
const ShortLineWords = 5

// ReferencesLabel is the section label opened by a paragraph starting with "references".
const ReferencesLabel = "References"

// KnownHeaders is the fixed vocabulary of header words.
//
//nolint:gochecknoglobals // fixed vocabulary
var KnownHeaders = []string{
	"introduction",
	"summary",
	"experience",
	"education",
	"affiliations",
	"skills",
	"competencies",
	"results",
	"conclusion",
	"profile",
	"contact",
	"name",
	"career experience",
	"references",
}

// Mode selects which signals apply when classifying a paragraph.
type Mode int

const (
	// ModeDocument classifies paragraphs of a styled source document.
	ModeDocument Mode = iota
	// ModeText classifies lines of raw text input.
	ModeText
	// ModeTemplate classifies paragraphs of a style template.
	ModeTemplate
)

// Features are the observable properties of a paragraph used for header detection.
type Features struct {
	Bold            bool
	FontSize        float64
	AllCaps         bool
	ShortLine       bool
	KnownVocabulary bool
}

// IsHeader reports whether a paragraph with these features starts a new section.
func IsHeader(f Features) (header bool) {
	header = f.Bold || f.FontSize > HeaderFontSize || f.AllCaps || f.KnownVocabulary || f.ShortLine
	return header
}

// FeaturesFor computes the features of a paragraph. bold and fontSize come from the
// first text run (zero values when unknown). Signals not used by mode are left false.
func FeaturesFor(text string, bold bool, fontSize float64, mode Mode) (f Features) {
	text = strings.TrimSpace(text)
	f = Features{
		Bold:     bold,
		FontSize: fontSize,
		AllCaps:  IsAllCaps(text),
	}

	switch mode {
	case ModeDocument:
		f.KnownVocabulary = MatchesKnownHeader(text)
	case ModeText:
		f.KnownVocabulary = MatchesKnownHeader(text)
		// A short line alone is weak evidence; it must also end like a label.
		f.ShortLine = len(strings.Fields(text)) < ShortLineWords && strings.HasSuffix(text, ":")
	case ModeTemplate:
	}

	return f
}

// IsAllCaps reports whether text has at least one letter and no lower-case letters.
func IsAllCaps(text string) (caps bool) {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLower(r) {
			caps = false
			return caps
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	caps = hasLetter
	return caps
}

// MatchesKnownHeader reports whether text begins with a known header word on a word boundary.
func MatchesKnownHeader(text string) (match bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, h := range KnownHeaders {
		if lower == h {
			match = true
			return match
		}
		if strings.HasPrefix(lower, h) {
			next := lower[len(h)]
			if next == ' ' || next == ':' {
				match = true
				return match
			}
		}
	}
	return match
}

// IsReferencesStart reports whether a paragraph opens the references section.
func IsReferencesStart(text string) (start bool) {
	start = strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "references")
	return start
}

// KeyFor converts a header label to the snake_case key form used in section maps.
// "Professional Experience:" becomes "professional_experience".
func KeyFor(label string) (key string) {
	lower := strings.ToLower(strings.TrimSpace(label))
	lower = strings.TrimRight(lower, ": ")
	key = strings.Map(func(r rune) (result rune) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result = r
			return result
		}
		result = '_'
		return result
	}, lower)
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	key = strings.Trim(key, "_")
	return key
}

// DisplayName turns a section key into a heading: "professional_summary" -> "Professional Summary".
func DisplayName(key string) (name string) {
	spaced := strings.Join(strings.Fields(strings.ReplaceAll(key, "_", " ")), " ")
	name = cases.Title(language.English).String(spaced)
	return name
}
