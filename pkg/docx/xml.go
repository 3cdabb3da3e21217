package docx

import "encoding/xml"

// XML namespaces used when generating parts.
const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsRel = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsCT  = "http://schemas.openxmlformats.org/package/2006/content-types"

	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
)

// paragraphXML represents a paragraph element (<w:p>). Children keeps runs and
// run containers (hyperlinks, insertions, smart tags) in document order.
type paragraphXML struct {
	Properties *paragraphPropsXML `xml:"pPr"`
	Children   []paraChildXML     `xml:",any"`
}

// paragraphPropsXML represents paragraph properties (<w:pPr>).
type paragraphPropsXML struct {
	Style         *valXML     `xml:"pStyle"`
	Justification *valXML     `xml:"jc"`
	Spacing       *spacingXML `xml:"spacing"`
	Inner         []byte      `xml:",innerxml"`
}

// paraChildXML is either a run (<w:r>) or a container of runs.
type paraChildXML struct {
	XMLName    xml.Name
	Properties *runPropsXML   `xml:"rPr"`
	Items      []runItemXML   `xml:",any"`
	Runs       []paraChildXML `xml:"r"`
}

// runItemXML is one child of a run: text, tab, break and so on.
type runItemXML struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// runPropsXML represents run properties (<w:rPr>).
type runPropsXML struct {
	Bold      *valXML  `xml:"b"`
	Italic    *valXML  `xml:"i"`
	Underline *valXML  `xml:"u"`
	Caps      *valXML  `xml:"caps"`
	FontSize  *valXML  `xml:"sz"`
	Font      *fontXML `xml:"rFonts"`
	Color     *valXML  `xml:"color"`
}

// valXML represents an element whose payload is a w:val attribute.
type valXML struct {
	Val string `xml:"val,attr"`
}

// fontXML represents font settings.
type fontXML struct {
	ASCII string `xml:"ascii,attr"`
	HAnsi string `xml:"hAnsi,attr"`
	CS    string `xml:"cs,attr"`
}

// spacingXML represents paragraph spacing, in twips.
type spacingXML struct {
	Before string `xml:"before,attr"`
	After  string `xml:"after,attr"`
}

// tableXML represents a table (<w:tbl>).
type tableXML struct {
	Rows []tableRowXML `xml:"tr"`
}

// tableRowXML represents a table row (<w:tr>).
type tableRowXML struct {
	Cells []tableCellXML `xml:"tc"`
}

// tableCellXML represents a table cell (<w:tc>).
type tableCellXML struct {
	Paragraphs []paragraphXML `xml:"p"`
	Tables     []tableXML     `xml:"tbl"`
}

// relationshipsXML represents a .rels part.
type relationshipsXML struct {
	Relationships []relationshipXML `xml:"Relationship"`
}

// relationshipXML represents one relationship.
type relationshipXML struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}
