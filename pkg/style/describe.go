package style

import (
	"fmt"
	"strings"

	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/section"
	"github.com/pkg/errors"
)

// SectionDescription is one header section of a template with its rule and the body
// text that follows it.
type SectionDescription struct {
	Header  string
	Key     string
	Rule    Rule
	Content []string
}

// DescribeTemplate lists a template's header sections in document order.
func DescribeTemplate(template []byte) (sections []SectionDescription, err error) {
	var doc *docx.Document
	doc, err = docx.Open(template)
	if err != nil {
		err = errors.Wrap(err, "failed to open template")
		return sections, err
	}

	rules := ExtractDocument(doc)
	for _, p := range doc.Paragraphs() {
		text := strings.TrimSpace(p.Text())
		if text == "" {
			continue
		}
		if IsTemplateHeader(p) {
			rule, _ := rules.For(text)
			sections = append(sections, SectionDescription{
				Header: text,
				Key:    section.KeyFor(text),
				Rule:   rule,
			})
			continue
		}
		if len(sections) > 0 {
			last := &sections[len(sections)-1]
			last.Content = append(last.Content, text)
		}
	}

	return sections, err
}

// SectionPrompt renders the template description handed to the model as the
// template prompt.
func SectionPrompt(sections []SectionDescription) (prompt string) {
	var b strings.Builder
	b.WriteString("This is a template prompt for generating a document with the following structure and styling:\n\n")
	b.WriteString("The document should have the following sections, each with specific styling and semantic purposes:\n\n")

	for _, s := range sections {
		fmt.Fprintf(&b, "**Section: %s**\n", s.Header)
		fmt.Fprintf(&b, "- **Purpose**: This section represents %s content (e.g., if the section is 'Professional Experience', it should contain job roles, responsibilities, achievements).\n", s.Key)
		b.WriteString("- **Style**:\n")
		fmt.Fprintf(&b, "  - Font: %s\n", s.Rule.Font)
		fmt.Fprintf(&b, "  - Size: %gpt\n", s.Rule.Size)
		fmt.Fprintf(&b, "  - Bold: %t\n", s.Rule.Bold)
		fmt.Fprintf(&b, "  - Color: RGB(%d, %d, %d)\n", s.Rule.Color.R, s.Rule.Color.G, s.Rule.Color.B)
		fmt.Fprintf(&b, "  - Alignment: %s\n", s.Rule.Alignment)
		fmt.Fprintf(&b, "  - Spacing Before: %gpt\n", s.Rule.SpaceBefore)
		fmt.Fprintf(&b, "  - Spacing After: %gpt\n", s.Rule.SpaceAfter)
		fmt.Fprintf(&b, "  - Horizontal List: %t\n", s.Rule.HorizontalList)

		placeholder := "Placeholder for relevant content"
		if len(s.Content) > 0 {
			placeholder = strings.Join(s.Content, ", ")
		}
		fmt.Fprintf(&b, "- **Content Placeholder**: %s\n\n", placeholder)
	}

	prompt = b.String()
	return prompt
}
