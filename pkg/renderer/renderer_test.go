package renderer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/section"
	"github.com/nikogura/doc-reformatter/pkg/style"
)

func paragraphTexts(t *testing.T, data []byte) (texts []string) {
	t.Helper()
	doc, err := docx.Open(data)
	if err != nil {
		t.Fatalf("Failed to open rendered document: %v", err)
	}
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	return texts
}

func TestRenderWithoutTemplate(t *testing.T) {
	m := section.NewMap()
	m.Set(section.ReferencesKey, section.List("Doe, J. (2020).", "Roe, R. (2021)."))
	m.Set("professional_summary", section.Text("Builds platforms."))
	m.Set("skills", section.List("Go", "", "Rust"))
	m.Set("education", section.Text("  "))

	data, err := NewRenderer(nil).Render(m, []string{"professional_summary", "skills", "education"}, nil, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	expected := []string{
		"Professional Summary",
		"Builds platforms.",
		"Skills",
		"• Go",
		"• Rust",
		"References",
		"1. Doe, J. (2020).",
		"2. Roe, R. (2021).",
	}
	got := paragraphTexts(t, data)
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestRenderHeaderStyle(t *testing.T) {
	m := section.NewMap()
	m.Set("summary", section.Text("Builds platforms."))

	data, err := NewRenderer(nil).Render(m, []string{"summary"}, style.DefaultRules(), nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	doc, err := docx.Open(data)
	if err != nil {
		t.Fatalf("Failed to open rendered document: %v", err)
	}
	paragraphs := doc.Paragraphs()
	header, _ := paragraphs[0].FirstRun()
	if !header.Props.Bold || header.Props.Font != style.DefaultFont || header.Props.Size != style.DefaultSize {
		t.Errorf("Unexpected header props: %+v", header.Props)
	}
	body, _ := paragraphs[1].FirstRun()
	if body.Props.Bold {
		t.Error("Expected body text not to be bold")
	}
}

func TestRenderDegraded(t *testing.T) {
	m := section.NewMap()
	m.Set(section.ErrorKey, section.Text("chunk 1: request failed"))
	m.Set("summary", section.Text("Unable to categorize"))

	data, err := NewRenderer(nil).Render(m, []string{"summary"}, nil, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	expected := []string{"Error: chunk 1: request failed"}
	got := paragraphTexts(t, data)
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func buildTemplate(t *testing.T) (data []byte) {
	t.Helper()
	doc := docx.New()
	doc.AppendParagraph(docx.NewParagraph("Summary", docx.RunProps{Bold: true, Underline: true, Font: "Arial", Size: 14}, docx.ParagraphFormat{}))
	doc.AppendParagraph(docx.NewParagraph("Candidate overview", docx.RunProps{Font: "Georgia", Size: 10}, docx.ParagraphFormat{}))
	doc.AppendParagraph(docx.NewParagraph("Skills", docx.RunProps{Bold: true, Font: "Arial", Size: 12}, docx.ParagraphFormat{}))

	var err error
	data, err = doc.Bytes()
	if err != nil {
		t.Fatalf("Failed to build template: %v", err)
	}
	return data
}

func TestRenderPlaceholders(t *testing.T) {
	template := buildTemplate(t)
	rules, err := style.Extract(template)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	m := section.NewMap()
	m.Set("summary", section.Text("Seasoned engineer."))
	m.Set("skills", section.List("Go", "Rust"))
	m.Set("awards", section.List("Best Paper"))

	data, err := NewRenderer(nil).Render(m, []string{"summary", "skills", "awards"}, rules, template)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	expected := []string{
		"Seasoned engineer.",
		"Candidate overview",
		"Skills",
		"• Go",
		"• Rust",
		"Awards",
		"• Best Paper",
	}
	got := paragraphTexts(t, data)
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}

	doc, err := docx.Open(data)
	if err != nil {
		t.Fatalf("Failed to open rendered document: %v", err)
	}
	run, _ := doc.Paragraphs()[0].FirstRun()
	if !run.Props.Bold || !run.Props.Underline || run.Props.Font != "Arial" || run.Props.Size != 14 {
		t.Errorf("Expected placeholder formatting to be kept, got %+v", run.Props)
	}

	// Body text follows the template's first body paragraph.
	bullet, _ := doc.Paragraphs()[3].FirstRun()
	if bullet.Props.Font != "Georgia" {
		t.Errorf("Expected default font Georgia, got '%s'", bullet.Props.Font)
	}
}

func TestRenderHorizontalList(t *testing.T) {
	rules := style.DefaultRules()
	rule := style.DefaultRule()
	rule.Bold = true
	rule.HorizontalList = true
	rules.Sections["skills"] = rule
	rules.Headers = append(rules.Headers, "Skills")

	m := section.NewMap()
	m.Set("skills", section.List("Go", "Rust", "SQL"))

	data, err := NewRenderer(nil).Render(m, []string{"skills"}, rules, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	expected := []string{"Skills", "Go • Rust • SQL"}
	got := paragraphTexts(t, data)
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestRenderTables(t *testing.T) {
	tables := section.NewMap()
	tables.Set("dosage", section.Table([][]string{{"Drug", "Dose"}, {"A", "5mg", "daily"}}))
	tables.Set("broken", section.Text("not a table"))

	m := section.NewMap()
	m.Set("languages", section.Table([][]string{{"English", "Native"}}))
	m.Set(section.TablesKey, section.Record(tables))

	data, err := NewRenderer(nil).Render(m, m.Keys(), nil, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	doc, err := docx.Open(data)
	if err != nil {
		t.Fatalf("Failed to open rendered document: %v", err)
	}

	rendered := doc.Tables()
	if len(rendered) != 2 {
		t.Fatalf("Expected 2 tables, got %d", len(rendered))
	}
	expected := [][]string{{"Drug", "Dose", ""}, {"A", "5mg", "daily"}}
	if !reflect.DeepEqual(rendered[1].Strings(), expected) {
		t.Errorf("Expected %v, got %v", expected, rendered[1].Strings())
	}

	headers := paragraphTexts(t, data)
	if !reflect.DeepEqual(headers, []string{"Languages", "Dosage"}) {
		t.Errorf("Unexpected headings: %v", headers)
	}
}

func TestRenderSkipsTableWithoutCells(t *testing.T) {
	obj, err := section.DecodeObject([]byte(`{"summary": "ok", "data": [[]]}`))
	if err != nil {
		t.Fatalf("Failed to decode model output: %v", err)
	}
	m := section.FromObject(obj)
	if c, _ := m.Get("data"); c.Kind != section.KindTable {
		t.Fatalf("Expected data to decode as a table, got %s", c.Kind.String())
	}

	data, err := NewRenderer(nil).Render(m, m.Keys(), nil, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	doc, err := docx.Open(data)
	if err != nil {
		t.Fatalf("Failed to open rendered document: %v", err)
	}
	if len(doc.Tables()) != 0 {
		t.Errorf("Expected no tables, got %v", doc.Tables()[0].Strings())
	}

	expected := []string{"Summary", "ok"}
	got := paragraphTexts(t, data)
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestRenderEntries(t *testing.T) {
	first := section.NewMap()
	first.Set("company", section.Text("Acme"))
	first.Set("location", section.Text("Austin, TX"))
	first.Set("role", section.Text("Engineer"))
	first.Set("dates", section.Text("2020-2023"))
	first.Set("responsibilities", section.Text("Built the platform."))
	first.Set("achievements", section.List("Cut costs 30%", "Led migration"))
	first.Set("team_size", section.Text("8"))

	m := section.NewMap()
	m.Set("professional_experience", section.Entries(first, section.NewMap()))

	data, err := NewRenderer(nil).Render(m, m.Keys(), nil, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	expected := []string{
		"Professional Experience",
		"Acme | Austin, TX",
		"Engineer | 2020-2023",
		"Built the platform.",
		"• Cut costs 30%",
		"• Led migration",
		"Team Size: 8",
	}
	got := paragraphTexts(t, data)
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestRenderRecord(t *testing.T) {
	contact := section.NewMap()
	contact.Set("email", section.Text("jane@example.com"))
	contact.Set("phones", section.List("1", "2"))

	m := section.NewMap()
	m.Set("contact", section.Record(contact))

	data, err := NewRenderer(nil).Render(m, m.Keys(), nil, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	expected := []string{"Contact", "Email: jane@example.com", "Phones: 1, 2"}
	got := paragraphTexts(t, data)
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestWriteDocument(t *testing.T) {
	tmpDir := t.TempDir()
	nestedPath := filepath.Join(tmpDir, "nested", "dir", "out.docx")

	err := WriteDocument(nestedPath, []byte("docx bytes"))
	if err != nil {
		t.Fatalf("Failed to write document: %v", err)
	}

	data, err := os.ReadFile(nestedPath)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(data) != "docx bytes" {
		t.Errorf("Expected content 'docx bytes', got '%s'", string(data))
	}
}
