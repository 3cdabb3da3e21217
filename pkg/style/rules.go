package style

import (
	"strings"

	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/section"
)

const (
	// DefaultFont is used when a template does not name one.
	DefaultFont = "Arial"
	// DefaultSize is the fallback font size in points.
	DefaultSize = 11.0
	// DefaultSpacing is the fallback spacing before and after, in points.
	DefaultSpacing = 6.0
	// TableLabel keys the rule derived from a template table.
	TableLabel = "table"
	// DefaultLabel keys the fallback rule.
	DefaultLabel = "default"
)

// Rule is one section's formatting recipe.
type Rule struct {
	Font           string         `json:"font"`
	Size           float64        `json:"size"`
	Bold           bool           `json:"bold"`
	Color          docx.RGB       `json:"color"`
	Alignment      docx.Alignment `json:"alignment"`
	SpaceBefore    float64        `json:"space_before"`
	SpaceAfter     float64        `json:"space_after"`
	HorizontalList bool           `json:"horizontal_list"`
	Table          bool           `json:"table"`
}

// DefaultRule is Arial 11pt, not bold, black, left aligned, 6pt before and after.
func DefaultRule() (r Rule) {
	r = Rule{
		Font:        DefaultFont,
		Size:        DefaultSize,
		Color:       docx.Black,
		Alignment:   docx.AlignLeft,
		SpaceBefore: DefaultSpacing,
		SpaceAfter:  DefaultSpacing,
	}
	return r
}

// RunProps converts the rule's character formatting.
func (r Rule) RunProps() (props docx.RunProps) {
	color := r.Color
	props = docx.RunProps{
		Bold:  r.Bold,
		Font:  r.Font,
		Size:  r.Size,
		Color: &color,
	}
	return props
}

// ParagraphFormat converts the rule's paragraph formatting.
func (r Rule) ParagraphFormat() (f docx.ParagraphFormat) {
	f = docx.ParagraphFormat{
		Alignment:   r.Alignment,
		SpaceBefore: docx.Points(r.SpaceBefore),
		SpaceAfter:  docx.Points(r.SpaceAfter),
	}
	return f
}

// Rules maps lower-cased template header text to rules. Default always exists.
type Rules struct {
	Sections map[string]Rule `json:"sections"`
	Headers  []string        `json:"headers"`
	Default  Rule            `json:"default"`
}

// DefaultRules returns rules holding only the default.
func DefaultRules() (r *Rules) {
	r = &Rules{Sections: make(map[string]Rule), Default: DefaultRule()}
	return r
}

// For returns the rule for a section key or header label. Labels match
// case-insensitively, and "professional_summary" matches a "Professional Summary" header.
func (r *Rules) For(key string) (rule Rule, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(key))
	if rule, ok = r.Sections[lower]; ok {
		return rule, ok
	}
	wanted := section.KeyFor(key)
	for _, header := range r.Headers {
		if section.KeyFor(header) == wanted {
			rule, ok = r.Sections[strings.ToLower(header)]
			return rule, ok
		}
	}
	return rule, ok
}

// Resolve returns the rule for key, falling back to the default.
func (r *Rules) Resolve(key string) (rule Rule) {
	var ok bool
	if rule, ok = r.For(key); !ok {
		rule = r.Default
	}
	return rule
}

// Table returns the table rule, if the template had a table.
func (r *Rules) Table() (rule Rule, ok bool) {
	rule, ok = r.Sections[TableLabel]
	return rule, ok
}
