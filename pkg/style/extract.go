package style

import (
	"strings"

	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/section"
	"github.com/pkg/errors"
)

// horizontalListGlyph marks a single-line horizontal list in a template.
const horizontalListGlyph = "•"

// Extract infers rules from template bytes. Empty input yields only the default rule.
func Extract(template []byte) (rules *Rules, err error) {
	if len(template) == 0 {
		rules = DefaultRules()
		return rules, err
	}

	var doc *docx.Document
	doc, err = docx.Open(template)
	if err != nil {
		err = errors.Wrap(err, "failed to open template")
		return rules, err
	}

	rules = ExtractDocument(doc)
	return rules, err
}

// ExtractDocument infers rules from a parsed template. Each header paragraph yields
// a rule keyed by its lower-cased text; the first table yields the "table" rule; the
// first body paragraph yields the default rule.
func ExtractDocument(doc *docx.Document) (rules *Rules) {
	rules = DefaultRules()
	defaultSet := false

	for _, block := range doc.Blocks {
		switch block.Kind {
		case docx.BlockParagraph:
			p := block.Paragraph
			text := strings.TrimSpace(p.Text())
			if text == "" {
				continue
			}

			if !IsTemplateHeader(p) {
				if !defaultSet {
					rules.Default = ruleFrom(p)
					rules.Default.Bold = false
					defaultSet = true
				}
				continue
			}

			label := strings.ToLower(text)
			if _, exists := rules.Sections[label]; exists {
				continue
			}
			rule := ruleFrom(p)
			rule.HorizontalList = strings.Contains(text, horizontalListGlyph) && strings.Count(text, "\n") <= 1
			rules.Sections[label] = rule
			rules.Headers = append(rules.Headers, text)

		case docx.BlockTable:
			if _, exists := rules.Sections[TableLabel]; exists {
				continue
			}
			t := block.Table
			if len(t.Rows) == 0 || len(t.Rows[0]) == 0 || len(t.Rows[0][0].Paragraphs) == 0 {
				continue
			}
			first := t.Rows[0][0].Paragraphs[0]
			rule := ruleFrom(first)
			rule.Table = true
			rules.Sections[TableLabel] = rule

		case docx.BlockOther:
		}
	}

	return rules
}

// IsTemplateHeader classifies a template paragraph: bold (including heading and
// title styles), larger than the header threshold, or all caps.
func IsTemplateHeader(p *docx.Paragraph) (header bool) {
	bold, size := firstRunFeatures(p)
	header = section.IsHeader(section.FeaturesFor(p.Text(), bold, size, section.ModeTemplate))
	return header
}

func firstRunFeatures(p *docx.Paragraph) (bold bool, size float64) {
	if run, ok := p.FirstRun(); ok {
		bold = run.Props.Bold
		size = run.Props.Size
	}
	style := strings.ToLower(p.Format.Style)
	if strings.HasPrefix(style, "heading") || style == "title" {
		bold = true
	}
	return bold, size
}

// ruleFrom reads a rule off the paragraph's first text run and its format. Absent
// attributes take the default rule's values.
func ruleFrom(p *docx.Paragraph) (rule Rule) {
	rule = DefaultRule()
	format := p.Format

	bold, _ := firstRunFeatures(p)
	rule.Bold = bold

	if run, ok := p.FirstRun(); ok {
		if run.Props.Font != "" {
			rule.Font = run.Props.Font
		}
		if run.Props.Size > 0 {
			rule.Size = run.Props.Size
		}
		if run.Props.Color != nil {
			rule.Color = *run.Props.Color
		}
	}

	if format.Alignment != docx.AlignUnset {
		rule.Alignment = format.Alignment
	}
	if format.SpaceBefore != nil {
		rule.SpaceBefore = *format.SpaceBefore
	}
	if format.SpaceAfter != nil {
		rule.SpaceAfter = *format.SpaceAfter
	}

	return rule
}
