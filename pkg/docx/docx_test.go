package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestNewRoundTrip(t *testing.T) {
	doc := New()
	doc.AppendParagraph(NewParagraph("Summary", RunProps{Bold: true, Font: "Arial", Size: 14}, ParagraphFormat{Alignment: AlignCenter}))
	doc.AppendParagraph(NewParagraph("Line one\nLine two & more", RunProps{Font: "Arial", Size: 11}, ParagraphFormat{SpaceBefore: Points(6), SpaceAfter: Points(6)}))

	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	reopened, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	paragraphs := reopened.Paragraphs()
	if len(paragraphs) != 2 {
		t.Fatalf("Expected 2 paragraphs, got %d", len(paragraphs))
	}

	header := paragraphs[0]
	if header.Text() != "Summary" {
		t.Errorf("Expected 'Summary', got '%s'", header.Text())
	}
	run, ok := header.FirstRun()
	if !ok || !run.Props.Bold || run.Props.Size != 14 || run.Props.Font != "Arial" {
		t.Errorf("Unexpected header run props: %+v", run.Props)
	}
	if header.Format.Alignment != AlignCenter {
		t.Errorf("Expected center alignment, got '%s'", header.Format.Alignment)
	}

	body := paragraphs[1]
	if body.Text() != "Line one\nLine two & more" {
		t.Errorf("Unexpected body text: %q", body.Text())
	}
	if body.Format.SpaceBefore == nil || *body.Format.SpaceBefore != 6 {
		t.Errorf("Expected 6pt space before, got %v", body.Format.SpaceBefore)
	}

	// Section properties stay last.
	last := reopened.Blocks[len(reopened.Blocks)-1]
	if last.Kind != BlockOther {
		t.Errorf("Expected trailing section properties block, got kind %d", last.Kind)
	}
}

func TestReplaceTextKeepsFormatting(t *testing.T) {
	doc := New()
	doc.AppendParagraph(NewParagraph("{{summary}}", RunProps{Bold: true, Font: "Calibri", Size: 12}, ParagraphFormat{Style: "Heading1", Alignment: AlignRight}))
	doc.AppendParagraph(NewParagraph("untouched", RunProps{Italic: true}, ParagraphFormat{}))

	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	template, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	template.Paragraphs()[0].ReplaceText("An experienced engineer.")
	data, err = template.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	result, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	p := result.Paragraphs()[0]
	if p.Text() != "An experienced engineer." {
		t.Errorf("Expected replaced text, got '%s'", p.Text())
	}
	run, _ := p.FirstRun()
	if !run.Props.Bold || run.Props.Font != "Calibri" {
		t.Errorf("Expected bold Calibri run, got %+v", run.Props)
	}
	if p.Format.Style != "Heading1" || p.Format.Alignment != AlignRight {
		t.Errorf("Expected paragraph properties kept, got %+v", p.Format)
	}

	untouched, _ := result.Paragraphs()[1].FirstRun()
	if !untouched.Props.Italic {
		t.Error("Expected untouched paragraph to stay italic")
	}
}

func TestTableBordersAndContent(t *testing.T) {
	doc := New()
	doc.AppendTable(NewTable([][]string{{"A", "B"}, {"C"}}, RunProps{Font: "Arial", Size: 10}, ParagraphFormat{}))

	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	main := readPart(t, data, "word/document.xml")
	if strings.Count(main, "<w:tcBorders>") != 4 {
		t.Errorf("Expected borders on all 4 cells, got document: %s", main)
	}
	if !strings.Contains(main, `<w:jc w:val="center"/></w:tblPr>`) {
		t.Error("Expected centered table")
	}

	reopened, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	tables := reopened.Tables()
	if len(tables) != 1 {
		t.Fatalf("Expected 1 table, got %d", len(tables))
	}
	expected := [][]string{{"A", "B"}, {"C", ""}}
	if !reflect.DeepEqual(tables[0].Strings(), expected) {
		t.Errorf("Expected %v, got %v", expected, tables[0].Strings())
	}
}

func TestTableSkipsRowsWithoutCells(t *testing.T) {
	doc := New()
	doc.AppendTable(NewTable([][]string{{"A", "B"}, {}, {"C"}}, RunProps{}, ParagraphFormat{}))
	doc.AppendTable(&Table{Rows: [][]*Cell{{}, {{}}}})

	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	main := readPart(t, data, "word/document.xml")
	if strings.Contains(main, "<w:tr></w:tr>") {
		t.Errorf("Expected no row without cells, got document: %s", main)
	}

	reopened, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	expected := [][]string{{"A", "B"}, {"C", ""}}
	if !reflect.DeepEqual(reopened.Tables()[0].Strings(), expected) {
		t.Errorf("Expected %v, got %v", expected, reopened.Tables()[0].Strings())
	}
}

func TestInsertKeepsOrder(t *testing.T) {
	doc := New()
	first := NewParagraph("first", RunProps{}, ParagraphFormat{})
	doc.AppendParagraph(first)
	doc.AppendParagraph(NewParagraph("third", RunProps{}, ParagraphFormat{}))

	second := NewParagraph("second", RunProps{}, ParagraphFormat{})
	doc.Insert(doc.IndexOf(first)+1, &Block{Kind: BlockParagraph, Paragraph: second})

	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	expected := []string{"first", "second", "third"}
	if !reflect.DeepEqual(texts, expected) {
		t.Errorf("Expected %v, got %v", expected, texts)
	}
}

func TestOpenRawDocument(t *testing.T) {
	body := `<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr>` +
		`<w:r><w:rPr><w:b/><w:sz w:val="32"/><w:color w:val="1F3864"/></w:rPr><w:t>Profile</w:t></w:r></w:p>` +
		`<w:p><w:hyperlink r:id="rId9"><w:r><w:t>link</w:t></w:r></w:hyperlink><w:r><w:rPr><w:b w:val="0"/></w:rPr><w:t xml:space="preserve"> text</w:t></w:r></w:p>` +
		`<w:sectPr/>`
	data := buildDocx(t, body)

	doc, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	paragraphs := doc.Paragraphs()
	if len(paragraphs) != 2 {
		t.Fatalf("Expected 2 paragraphs, got %d", len(paragraphs))
	}

	run, _ := paragraphs[0].FirstRun()
	if !run.Props.Bold || run.Props.Size != 16 {
		t.Errorf("Expected bold 16pt run, got %+v", run.Props)
	}
	if run.Props.Color == nil || run.Props.Color.Hex() != "1F3864" {
		t.Errorf("Expected color 1F3864, got %v", run.Props.Color)
	}
	if paragraphs[0].Format.Style != "Title" {
		t.Errorf("Expected Title style, got '%s'", paragraphs[0].Format.Style)
	}

	if paragraphs[1].Text() != "link text" {
		t.Errorf("Expected 'link text', got '%s'", paragraphs[1].Text())
	}
	if paragraphs[1].Runs[1].Props.Bold {
		t.Error("Expected explicit b=0 not to be bold")
	}

	// Unmodified blocks are written back byte for byte.
	out, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !strings.Contains(readPart(t, out, "word/document.xml"), body) {
		t.Error("Expected unmodified body to be preserved verbatim")
	}
}

func TestOpenCorrupt(t *testing.T) {
	_, err := Open([]byte("not a zip file"))
	if err == nil {
		t.Error("Expected error for corrupt input, got nil")
	}

	_, err = Open(buildZip(t, map[string]string{"word/other.xml": "<x/>"}))
	if err == nil {
		t.Error("Expected error for archive without document part, got nil")
	}
}

func buildDocx(t *testing.T, body string) (data []byte) {
	t.Helper()
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="` + nsW + `" xmlns:r="` + nsR + `"><w:body>` + body + `</w:body></w:document>`
	data = buildZip(t, map[string]string{"word/document.xml": document})
	return data
}

func buildZip(t *testing.T, files map[string]string) (data []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
		_, err = w.Write([]byte(content))
		if err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	err := zw.Close()
	if err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	data = buf.Bytes()
	return data
}

func readPart(t *testing.T, data []byte, name string) (content string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to read zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, openErr := f.Open()
		if openErr != nil {
			t.Fatalf("Failed to open %s: %v", name, openErr)
		}
		raw, readErr := io.ReadAll(rc)
		_ = rc.Close()
		if readErr != nil {
			t.Fatalf("Failed to read %s: %v", name, readErr)
		}
		content = string(raw)
		return content
	}
	t.Fatalf("Part %s not found", name)
	return content
}
