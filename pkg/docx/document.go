package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// BlockKind identifies a body-level element.
type BlockKind int

const (
	// BlockParagraph is a <w:p>.
	BlockParagraph BlockKind = iota
	// BlockTable is a <w:tbl>.
	BlockTable
	// BlockOther is any other body element (section properties, content controls).
	BlockOther
)

// Block is one body-level element in document order. Blocks read from a source
// document keep their original XML and are written back verbatim unless modified.
type Block struct {
	Kind      BlockKind
	Paragraph *Paragraph
	Table     *Table

	raw      []byte
	fromBase bool
	name     string
}

// FromSource reports whether the block came from the opened document rather than being added.
func (b *Block) FromSource() (source bool) {
	source = b.fromBase
	return source
}

// Document is an in-memory .docx package.
type Document struct {
	Blocks []*Block

	parts      map[string][]byte
	partOrder  []string
	mainPart   string
	bodyPrefix []byte
	bodySuffix []byte
}

// MimeType is the content type of a .docx file.
const MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Open parses a .docx package from bytes.
func Open(data []byte) (doc *Document, err error) {
	var zr *zip.Reader
	zr, err = zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		err = errors.Wrap(err, "failed to open docx archive")
		return doc, err
	}

	doc = &Document{parts: make(map[string][]byte)}
	for _, f := range zr.File {
		var content []byte
		content, err = readZipFile(f)
		if err != nil {
			err = errors.Wrapf(err, "failed to read docx part: %s", f.Name)
			return doc, err
		}
		doc.parts[f.Name] = content
		doc.partOrder = append(doc.partOrder, f.Name)
	}

	doc.mainPart = doc.findMainPart()
	main, ok := doc.parts[doc.mainPart]
	if !ok {
		err = errors.Errorf("docx archive has no main document part: %s", doc.mainPart)
		return doc, err
	}

	err = doc.parseBody(main)
	if err != nil {
		err = errors.Wrap(err, "failed to parse document body")
		return doc, err
	}

	return doc, err
}

func readZipFile(f *zip.File) (content []byte, err error) {
	var rc io.ReadCloser
	rc, err = f.Open()
	if err != nil {
		return content, err
	}
	defer rc.Close()

	content, err = io.ReadAll(rc)
	return content, err
}

// findMainPart resolves the officeDocument relationship, falling back to word/document.xml.
func (d *Document) findMainPart() (name string) {
	name = "word/document.xml"
	rels, ok := d.parts["_rels/.rels"]
	if !ok {
		return name
	}

	var parsed relationshipsXML
	if err := xml.Unmarshal(rels, &parsed); err != nil {
		return name
	}
	for _, rel := range parsed.Relationships {
		if rel.Type == relTypeOfficeDocument {
			name = strings.TrimPrefix(path.Clean("/"+rel.Target), "/")
			return name
		}
	}
	return name
}

// parseBody splits the main part into prefix, body blocks and suffix, keeping each
// block's original bytes.
func (d *Document) parseBody(data []byte) (err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	inBody := false

	for {
		offset := dec.InputOffset()
		var tok xml.Token
		tok, err = dec.Token()
		if err == io.EOF {
			err = errors.New("document body not found")
			return err
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				if t.Name.Local == "body" {
					inBody = true
					d.bodyPrefix = append([]byte{}, data[:dec.InputOffset()]...)
				}
				continue
			}

			var block *Block
			block, err = decodeBlock(dec, t)
			if err != nil {
				return err
			}
			block.raw = append([]byte{}, data[offset:dec.InputOffset()]...)
			block.fromBase = true
			d.Blocks = append(d.Blocks, block)

		case xml.EndElement:
			if inBody && t.Name.Local == "body" {
				d.bodySuffix = append([]byte{}, data[offset:]...)
				return err
			}
		}
	}
}

func decodeBlock(dec *xml.Decoder, start xml.StartElement) (block *Block, err error) {
	block = &Block{name: start.Name.Local}

	switch start.Name.Local {
	case "p":
		var p paragraphXML
		err = dec.DecodeElement(&p, &start)
		if err != nil {
			err = errors.Wrap(err, "failed to decode paragraph")
			return block, err
		}
		block.Kind = BlockParagraph
		block.Paragraph = convertParagraph(p)
	case "tbl":
		var t tableXML
		err = dec.DecodeElement(&t, &start)
		if err != nil {
			err = errors.Wrap(err, "failed to decode table")
			return block, err
		}
		block.Kind = BlockTable
		block.Table = convertTable(t)
	default:
		block.Kind = BlockOther
		err = dec.Skip()
	}

	return block, err
}

func convertParagraph(p paragraphXML) (para *Paragraph) {
	para = &Paragraph{}
	if p.Properties != nil {
		para.pPrRaw = append([]byte{}, p.Properties.Inner...)
		if p.Properties.Style != nil {
			para.Format.Style = p.Properties.Style.Val
		}
		if p.Properties.Justification != nil {
			para.Format.Alignment = parseAlignment(p.Properties.Justification.Val)
		}
		if sp := p.Properties.Spacing; sp != nil {
			para.Format.SpaceBefore = twipsToPoints(sp.Before)
			para.Format.SpaceAfter = twipsToPoints(sp.After)
		}
	}

	for _, child := range p.Children {
		para.Runs = append(para.Runs, collectRuns(child)...)
	}
	return para
}

// collectRuns flattens a run or run container into runs, in document order.
func collectRuns(child paraChildXML) (runs []Run) {
	if child.XMLName.Local == "r" {
		runs = append(runs, convertRun(child))
		return runs
	}
	for _, inner := range child.Runs {
		runs = append(runs, collectRuns(inner)...)
	}
	return runs
}

func convertRun(r paraChildXML) (run Run) {
	var b strings.Builder
	for _, item := range r.Items {
		switch item.XMLName.Local {
		case "t":
			b.WriteString(item.Value)
		case "tab", "ptab":
			b.WriteString("\t")
		case "br", "cr":
			b.WriteString("\n")
		case "noBreakHyphen":
			b.WriteString("-")
		}
	}
	run.Text = b.String()

	if rp := r.Properties; rp != nil {
		run.Props.Bold = onOff(rp.Bold)
		run.Props.Italic = onOff(rp.Italic)
		if rp.Underline != nil && rp.Underline.Val != "none" {
			run.Props.Underline = true
		}
		if rp.Font != nil {
			run.Props.Font = firstNonEmpty(rp.Font.ASCII, rp.Font.HAnsi, rp.Font.CS)
		}
		if rp.FontSize != nil {
			if halfPoints, err := strconv.ParseFloat(rp.FontSize.Val, 64); err == nil {
				run.Props.Size = halfPoints / 2
			}
		}
		if rp.Color != nil {
			if c, ok := ParseRGB(rp.Color.Val); ok {
				run.Props.Color = &c
			}
		}
		if onOff(rp.Caps) {
			run.Text = strings.ToUpper(run.Text)
		}
	}
	return run
}

func convertTable(t tableXML) (table *Table) {
	table = &Table{}
	for _, row := range t.Rows {
		cells := make([]*Cell, 0, len(row.Cells))
		for _, c := range row.Cells {
			cell := &Cell{}
			for _, p := range c.Paragraphs {
				cell.Paragraphs = append(cell.Paragraphs, convertParagraph(p))
			}
			cells = append(cells, cell)
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

// onOff interprets a toggle property: present without a value, or with a true value, is on.
func onOff(v *valXML) (on bool) {
	if v == nil {
		return on
	}
	switch strings.ToLower(v.Val) {
	case "", "1", "true", "on":
		on = true
	}
	return on
}

func twipsToPoints(val string) (points *float64) {
	if val == "" {
		return points
	}
	twips, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return points
	}
	points = Points(twips / 20)
	return points
}

func firstNonEmpty(values ...string) (s string) {
	for _, v := range values {
		if v != "" {
			s = v
			return s
		}
	}
	return s
}

// Paragraphs returns the body-level paragraphs in order.
func (d *Document) Paragraphs() (paragraphs []*Paragraph) {
	for _, b := range d.Blocks {
		if b.Kind == BlockParagraph {
			paragraphs = append(paragraphs, b.Paragraph)
		}
	}
	return paragraphs
}

// Tables returns the body-level tables in order.
func (d *Document) Tables() (tables []*Table) {
	for _, b := range d.Blocks {
		if b.Kind == BlockTable {
			tables = append(tables, b.Table)
		}
	}
	return tables
}

// IndexOf returns the block index holding paragraph p, or -1.
func (d *Document) IndexOf(p *Paragraph) (idx int) {
	idx = -1
	for i, b := range d.Blocks {
		if b.Paragraph == p {
			idx = i
			return idx
		}
	}
	return idx
}

// endIndex is where appended blocks go: before a trailing section-properties element.
func (d *Document) endIndex() (idx int) {
	idx = len(d.Blocks)
	if idx > 0 && d.Blocks[idx-1].Kind == BlockOther && d.Blocks[idx-1].name == "sectPr" {
		idx--
	}
	return idx
}

// Insert places a block at index idx, clamped to the append position.
func (d *Document) Insert(idx int, b *Block) {
	end := d.endIndex()
	if idx < 0 || idx > end {
		idx = end
	}
	d.Blocks = append(d.Blocks, nil)
	copy(d.Blocks[idx+1:], d.Blocks[idx:])
	d.Blocks[idx] = b
}

// AppendParagraph adds a paragraph at the end of the body.
func (d *Document) AppendParagraph(p *Paragraph) {
	p.modified = true
	d.Insert(d.endIndex(), &Block{Kind: BlockParagraph, Paragraph: p})
}

// AppendTable adds a table at the end of the body.
func (d *Document) AppendTable(t *Table) {
	d.Insert(d.endIndex(), &Block{Kind: BlockTable, Table: t})
}

// NewParagraph builds a paragraph with a single run.
func NewParagraph(text string, props RunProps, format ParagraphFormat) (p *Paragraph) {
	p = &Paragraph{
		Runs:     []Run{{Text: text, Props: props}},
		Format:   format,
		modified: true,
	}
	return p
}

// Bytes serializes the package.
func (d *Document) Bytes() (data []byte, err error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	main := d.renderMain()
	for _, name := range d.partOrder {
		content := d.parts[name]
		if name == d.mainPart {
			content = main
		}

		var w io.Writer
		w, err = zw.Create(name)
		if err != nil {
			err = errors.Wrapf(err, "failed to create docx part: %s", name)
			return data, err
		}
		_, err = w.Write(content)
		if err != nil {
			err = errors.Wrapf(err, "failed to write docx part: %s", name)
			return data, err
		}
	}

	err = zw.Close()
	if err != nil {
		err = errors.Wrap(err, "failed to finalize docx archive")
		return data, err
	}

	data = buf.Bytes()
	return data, err
}

func (d *Document) renderMain() (main []byte) {
	var buf bytes.Buffer
	buf.Write(d.bodyPrefix)
	for _, b := range d.Blocks {
		if b.raw != nil && !b.dirty() {
			buf.Write(b.raw)
			continue
		}
		switch b.Kind {
		case BlockParagraph:
			writeParagraph(&buf, b.Paragraph)
		case BlockTable:
			writeTable(&buf, b.Table)
		case BlockOther:
			buf.Write(b.raw)
		}
	}
	buf.Write(d.bodySuffix)
	main = buf.Bytes()
	return main
}

func (b *Block) dirty() (dirty bool) {
	if b.Kind == BlockParagraph && b.Paragraph != nil {
		dirty = b.Paragraph.modified
	}
	return dirty
}
