package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ExpectedSection is a section a template prompt asks for.
type ExpectedSection struct {
	Name string
	Key  string
}

//nolint:gochecknoglobals // compiled once
var expectedSectionPattern = regexp.MustCompile(`\*\*Section:\s*([^\*]+)\*\*\s*- \*\*Purpose\*\*:\s*This section represents\s*([^\s]+)\s*content`)

// ParseExpectedSections reads the section list out of a template section prompt.
func ParseExpectedSections(templatePrompt string) (sections []ExpectedSection) {
	seen := make(map[string]bool)
	for _, m := range expectedSectionPattern.FindAllStringSubmatch(templatePrompt, -1) {
		key := strings.ToLower(strings.TrimSpace(m[2]))
		if seen[key] {
			continue
		}
		seen[key] = true
		sections = append(sections, ExpectedSection{Name: strings.TrimSpace(m[1]), Key: key})
	}
	return sections
}

// BuildSystemPrompt creates the structuring instructions: step 1 structures the content
// per the template prompt, step 2 applies the optional conversion instructions.
func BuildSystemPrompt(templatePrompt, conversionPrompt string) (prompt string) {
	var b strings.Builder

	b.WriteString("You are an AI assistant tasked with converting raw content into a structured JSON format ")
	b.WriteString("based on a template prompt, followed by applying additional conversion instructions to modify the content.\n\n")

	b.WriteString("**Step 1: Structure the Content Using the Template Prompt**\n")
	b.WriteString("Use the following template prompt to define the structure, sections, and semantics of the output:\n\n")
	b.WriteString("**Template Prompt**:\n")
	b.WriteString(templatePrompt)
	b.WriteString("\n\n")

	if expected := ParseExpectedSections(templatePrompt); len(expected) > 0 {
		keys := make([]string, 0, len(expected))
		for _, s := range expected {
			keys = append(keys, s.Key)
		}
		fmt.Fprintf(&b, "Use exactly these section keys where the content fits them: %s.\n\n", strings.Join(keys, ", "))
	} else {
		b.WriteString("Based on the template prompt, structure the raw content into sections such as headers, contact info, ")
		b.WriteString("professional summary, core competencies, professional experience, education, etc. Ensure the content ")
		b.WriteString("is organized according to the template's specified layout and semantics.\n\n")
	}

	b.WriteString("**Step 2: Apply Conversion Instructions (if provided)**\n")
	b.WriteString("The conversion instructions are for modifying the content's tone, brevity, or wording, NOT for applying ")
	b.WriteString("document styling (e.g., fonts, colors, sizes, spacing). Styling will be handled separately after this step.\n")

	if strings.TrimSpace(conversionPrompt) != "" {
		b.WriteString("After structuring the content, apply the following conversion instructions to modify the tone, brevity, ")
		b.WriteString("or other attributes of the content as specified:\n\n")
		b.WriteString("**Conversion Instructions**:\n")
		b.WriteString(conversionPrompt)
		b.WriteString("\n\n")
		b.WriteString("Rewrite the structured content accordingly while preserving the structure defined by the template prompt.\n\n")
	} else {
		b.WriteString("No additional conversion instructions provided. Proceed with the structured content as is.\n\n")
	}

	b.WriteString("**Output Format**:\n")
	b.WriteString("Return a single JSON object whose keys are lower-case snake_case section keys. A value is a string, ")
	b.WriteString("a list of strings, a list of objects (for example experience entries with company, location, role, dates, ")
	b.WriteString("responsibilities and achievements), or a table given as a list of rows. Put tables under \"tables\" keyed by ")
	b.WriteString("section name and references under \"references\" as a list of strings. ")
	b.WriteString("Do NOT apply document styling (e.g., fonts, colors, sizes, spacing).")

	prompt = b.String()
	return prompt
}

// BuildUserPayload formats one chunk's text and tables for the model.
func BuildUserPayload(text string, tables [][][]string) (payload string) {
	if tables == nil {
		tables = [][][]string{}
	}
	tablesJSON, _ := json.Marshal(tables)

	payload = fmt.Sprintf(`Input Text:
%s

Tables:
%s

Output format:
{"summary": "...", "background": "...", "tables": {"section_name": [["cell1", "cell2"], ["cell3", "cell4"]]}, "references": ["ref1", "ref2"]}`,
		text, string(tablesJSON))

	return payload
}
