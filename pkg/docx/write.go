package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// tableWidthTwips is the total grid width of generated tables (6.25 inches).
const tableWidthTwips = 9000

const defaultSectPr = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
	`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`

// New returns an empty document with Arial 11pt as the default run format.
func New() (doc *Document) {
	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Types xmlns="` + nsCT + `">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
		`</Types>`

	rootRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="` + nsRel + `">` +
		`<Relationship Id="rId1" Type="` + relTypeOfficeDocument + `" Target="word/document.xml"/>` +
		`</Relationships>`

	docRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="` + nsRel + `">` +
		`<Relationship Id="rId1" Type="` + relTypeStyles + `" Target="styles.xml"/>` +
		`</Relationships>`

	styles := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:styles xmlns:w="` + nsW + `">` +
		`<w:docDefaults><w:rPrDefault><w:rPr>` +
		`<w:rFonts w:ascii="Arial" w:hAnsi="Arial" w:cs="Arial"/><w:sz w:val="22"/>` +
		`</w:rPr></w:rPrDefault></w:docDefaults>` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
		`</w:styles>`

	doc = &Document{
		parts: map[string][]byte{
			"[Content_Types].xml":          []byte(contentTypes),
			"_rels/.rels":                  []byte(rootRels),
			"word/_rels/document.xml.rels": []byte(docRels),
			"word/styles.xml":              []byte(styles),
		},
		partOrder: []string{
			"[Content_Types].xml",
			"_rels/.rels",
			"word/document.xml",
			"word/_rels/document.xml.rels",
			"word/styles.xml",
		},
		mainPart: "word/document.xml",
		bodyPrefix: []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<w:document xmlns:w="` + nsW + `" xmlns:r="` + nsR + `"><w:body>`),
		bodySuffix: []byte(`</w:body></w:document>`),
		Blocks: []*Block{
			{Kind: BlockOther, raw: []byte(defaultSectPr), name: "sectPr"},
		},
	}
	return doc
}

func writeParagraph(buf *bytes.Buffer, p *Paragraph) {
	buf.WriteString("<w:p>")
	if p.pPrRaw != nil {
		buf.WriteString("<w:pPr>")
		buf.Write(p.pPrRaw)
		buf.WriteString("</w:pPr>")
	} else {
		writeParagraphProps(buf, p.Format)
	}
	for _, r := range p.Runs {
		writeRun(buf, r)
	}
	buf.WriteString("</w:p>")
}

func writeParagraphProps(buf *bytes.Buffer, f ParagraphFormat) {
	var props strings.Builder
	if f.Style != "" {
		props.WriteString(`<w:pStyle w:val="` + escapeAttr(f.Style) + `"/>`)
	}
	if f.SpaceBefore != nil || f.SpaceAfter != nil {
		props.WriteString("<w:spacing")
		if f.SpaceBefore != nil {
			props.WriteString(` w:before="` + pointsToTwips(*f.SpaceBefore) + `"`)
		}
		if f.SpaceAfter != nil {
			props.WriteString(` w:after="` + pointsToTwips(*f.SpaceAfter) + `"`)
		}
		props.WriteString("/>")
	}
	if f.Bullet {
		props.WriteString(`<w:ind w:left="360" w:hanging="360"/>`)
	}
	if f.Alignment != AlignUnset {
		props.WriteString(`<w:jc w:val="` + f.Alignment.jcValue() + `"/>`)
	}
	if props.Len() == 0 {
		return
	}
	buf.WriteString("<w:pPr>")
	buf.WriteString(props.String())
	buf.WriteString("</w:pPr>")
}

func writeRun(buf *bytes.Buffer, r Run) {
	buf.WriteString("<w:r>")
	writeRunProps(buf, r.Props)

	lines := strings.Split(r.Text, "\n")
	for i, line := range lines {
		if i > 0 {
			buf.WriteString("<w:br/>")
		}
		for j, segment := range strings.Split(line, "\t") {
			if j > 0 {
				buf.WriteString("<w:tab/>")
			}
			if segment == "" {
				continue
			}
			buf.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(buf, []byte(segment))
			buf.WriteString("</w:t>")
		}
	}
	buf.WriteString("</w:r>")
}

func writeRunProps(buf *bytes.Buffer, p RunProps) {
	var props strings.Builder
	if p.Font != "" {
		font := escapeAttr(p.Font)
		props.WriteString(fmt.Sprintf(`<w:rFonts w:ascii="%s" w:hAnsi="%s" w:cs="%s"/>`, font, font, font))
	}
	if p.Bold {
		props.WriteString("<w:b/>")
	}
	if p.Italic {
		props.WriteString("<w:i/>")
	}
	if p.Color != nil {
		props.WriteString(`<w:color w:val="` + p.Color.Hex() + `"/>`)
	}
	if p.Size > 0 {
		props.WriteString(`<w:sz w:val="` + strconv.Itoa(int(p.Size*2+0.5)) + `"/>`)
	}
	if p.Underline {
		props.WriteString(`<w:u w:val="single"/>`)
	}
	if props.Len() == 0 {
		return
	}
	buf.WriteString("<w:rPr>")
	buf.WriteString(props.String())
	buf.WriteString("</w:rPr>")
}

func writeTable(buf *bytes.Buffer, t *Table) {
	cols := t.ColCount()
	if cols == 0 {
		cols = 1
	}

	buf.WriteString("<w:tbl><w:tblPr>")
	buf.WriteString(`<w:tblW w:w="0" w:type="auto"/>`)
	if t.Centered {
		buf.WriteString(`<w:jc w:val="center"/>`)
	}
	buf.WriteString("</w:tblPr><w:tblGrid>")
	colWidth := strconv.Itoa(tableWidthTwips / cols)
	for i := 0; i < cols; i++ {
		buf.WriteString(`<w:gridCol w:w="` + colWidth + `"/>`)
	}
	buf.WriteString("</w:tblGrid>")

	for _, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		buf.WriteString("<w:tr>")
		for _, cell := range row {
			buf.WriteString("<w:tc><w:tcPr>")
			buf.WriteString(`<w:tcW w:w="` + colWidth + `" w:type="dxa"/>`)
			if t.Borders {
				buf.WriteString("<w:tcBorders>")
				for _, side := range []string{"top", "left", "bottom", "right"} {
					buf.WriteString(`<w:` + side + ` w:val="single" w:sz="4" w:space="0" w:color="auto"/>`)
				}
				buf.WriteString("</w:tcBorders>")
			}
			buf.WriteString("</w:tcPr>")
			if len(cell.Paragraphs) == 0 {
				buf.WriteString("<w:p/>")
			}
			for _, p := range cell.Paragraphs {
				writeParagraph(buf, p)
			}
			buf.WriteString("</w:tc>")
		}
		buf.WriteString("</w:tr>")
	}
	buf.WriteString("</w:tbl>")
}

func pointsToTwips(points float64) (twips string) {
	twips = strconv.Itoa(int(points*20 + 0.5))
	return twips
}

func escapeAttr(s string) (escaped string) {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	escaped = b.String()
	return escaped
}
