package docx

import (
	"fmt"
	"strconv"
	"strings"
)

// Alignment is a paragraph's horizontal alignment.
type Alignment string

const (
	AlignUnset   Alignment = ""
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// parseAlignment maps a w:jc value onto an Alignment.
func parseAlignment(val string) (a Alignment) {
	switch val {
	case "left", "start":
		a = AlignLeft
	case "center":
		a = AlignCenter
	case "right", "end":
		a = AlignRight
	case "both", "distribute", "justify":
		a = AlignJustify
	default:
		a = AlignUnset
	}
	return a
}

// jcValue is the w:jc attribute value for an Alignment.
func (a Alignment) jcValue() (val string) {
	switch a {
	case AlignJustify:
		val = "both"
	default:
		val = string(a)
	}
	return val
}

// RGB is a text color.
type RGB struct {
	R, G, B uint8
}

// Black is the default text color.
//
//nolint:gochecknoglobals // color constant
var Black = RGB{}

// Hex returns the color as six upper-case hex digits.
func (c RGB) Hex() (hex string) {
	hex = fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
	return hex
}

// ParseRGB parses a six digit hex color. ok is false for "auto" or malformed input.
func ParseRGB(hex string) (c RGB, ok bool) {
	if len(hex) != 6 {
		return c, ok
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return c, ok
	}
	c = RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
	ok = true
	return c, ok
}

// RunProps is the character formatting of a run. Zero values mean "not set".
type RunProps struct {
	Bold      bool
	Italic    bool
	Underline bool
	Font      string
	Size      float64 // points
	Color     *RGB
}

// Run is a span of text sharing formatting.
type Run struct {
	Text  string
	Props RunProps
}

// ParagraphFormat is the paragraph-level formatting.
type ParagraphFormat struct {
	Style       string
	Alignment   Alignment
	SpaceBefore *float64 // points
	SpaceAfter  *float64 // points
	Bullet      bool
}

// Paragraph is a body or table-cell paragraph.
type Paragraph struct {
	Runs   []Run
	Format ParagraphFormat

	pPrRaw   []byte
	modified bool
}

// Text returns the paragraph's text.
func (p *Paragraph) Text() (text string) {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	text = b.String()
	return text
}

// FirstRun returns the first run carrying text, if any.
func (p *Paragraph) FirstRun() (run Run, ok bool) {
	for _, r := range p.Runs {
		if strings.TrimSpace(r.Text) != "" {
			run = r
			ok = true
			return run, ok
		}
	}
	if len(p.Runs) > 0 {
		run = p.Runs[0]
		ok = true
	}
	return run, ok
}

// ReplaceText replaces the paragraph's runs with one run holding text, carrying over
// the bold, italic, underline, font, size and color of the existing first run.
// Paragraph properties are preserved.
func (p *Paragraph) ReplaceText(text string) {
	props := RunProps{}
	if first, ok := p.FirstRun(); ok {
		props = first.Props
	}
	p.Runs = []Run{{Text: text, Props: props}}
	p.modified = true
}

// SetFormat replaces the paragraph format and drops any format read from the source.
func (p *Paragraph) SetFormat(f ParagraphFormat) {
	p.Format = f
	p.pPrRaw = nil
	p.modified = true
}

// Cell is a table cell.
type Cell struct {
	Paragraphs []*Paragraph
}

// Text returns the cell text, paragraphs joined by newlines.
func (c *Cell) Text() (text string) {
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		parts = append(parts, p.Text())
	}
	text = strings.Join(parts, "\n")
	return text
}

// Table is a body table.
type Table struct {
	Rows     [][]*Cell
	Borders  bool
	Centered bool
}

// NewTable builds a bordered table from cell strings. Short rows are padded so every
// row has the same column count. Every cell paragraph gets props and format.
func NewTable(rows [][]string, props RunProps, format ParagraphFormat) (t *Table) {
	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}

	t = &Table{Borders: true, Centered: true}
	for _, row := range rows {
		// A row without cells is invalid OOXML.
		if len(row) == 0 {
			continue
		}
		cells := make([]*Cell, 0, cols)
		for i := 0; i < cols; i++ {
			text := ""
			if i < len(row) {
				text = row[i]
			}
			p := &Paragraph{Runs: []Run{{Text: text, Props: props}}, Format: format, modified: true}
			cells = append(cells, &Cell{Paragraphs: []*Paragraph{p}})
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// Strings returns the table's cell texts.
func (t *Table) Strings() (rows [][]string) {
	rows = make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, c.Text())
		}
		rows = append(rows, cells)
	}
	return rows
}

// FirstRun returns the first run of the first cell's first paragraph.
func (t *Table) FirstRun() (run Run, ok bool) {
	if len(t.Rows) == 0 || len(t.Rows[0]) == 0 || len(t.Rows[0][0].Paragraphs) == 0 {
		return run, ok
	}
	run, ok = t.Rows[0][0].Paragraphs[0].FirstRun()
	return run, ok
}

// ColCount returns the widest row's cell count.
func (t *Table) ColCount() (cols int) {
	for _, row := range t.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return cols
}

// Points returns a pointer to v, for optional spacing fields.
func Points(v float64) (p *float64) {
	p = &v
	return p
}
