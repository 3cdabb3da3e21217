package extract

import (
	"strings"

	"github.com/nikogura/doc-reformatter/pkg/chunker"
	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/section"
	"go.uber.org/zap"
)

// BlockKind distinguishes paragraphs from tables.
type BlockKind int

const (
	// KindParagraph is a paragraph or text line.
	KindParagraph BlockKind = iota
	// KindTable is a flattened table.
	KindTable
)

// ContentBlock is one paragraph or table read from a source, tagged with the section
// that was open when it was read. Section is empty before the first header.
type ContentBlock struct {
	Kind     BlockKind
	Text     string
	Rows     [][]string
	Section  string
	IsHeader bool
}

// ExtractedContent is the extraction result for one source.
type ExtractedContent struct {
	Blocks       []ContentBlock
	Chunks       []chunker.Chunk
	Tables       [][][]string
	References   []string
	SectionOrder []string
}

// Text returns all chunk text joined by newlines.
func (c *ExtractedContent) Text() (text string) {
	text = strings.Join(chunker.Texts(c.Chunks), "\n")
	return text
}

// Extractor turns source documents into ExtractedContent.
type Extractor struct {
	chunkSize int
	logger    *zap.SugaredLogger
}

// NewExtractor creates an extractor. chunkSize <= 0 selects the chunker default.
func NewExtractor(chunkSize int, logger *zap.SugaredLogger) (x *Extractor) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	x = &Extractor{chunkSize: chunkSize, logger: logger}
	return x
}

// FromDocx extracts content from .docx bytes. Header detection uses the first text
// run's bold flag and size, upper-case text and the known header vocabulary.
func (x *Extractor) FromDocx(data []byte) (content *ExtractedContent, err error) {
	var doc *docx.Document
	doc, err = docx.Open(data)
	if err != nil {
		err = &ExtractionError{Cause: err}
		return content, err
	}

	b := newBuilder()
	for _, block := range doc.Blocks {
		switch block.Kind {
		case docx.BlockParagraph:
			bold, size := runFeatures(block.Paragraph)
			text := block.Paragraph.Text()
			b.paragraph(text, section.FeaturesFor(text, bold, size, section.ModeDocument))
		case docx.BlockTable:
			b.table(block.Table.Strings())
		case docx.BlockOther:
		}
	}

	content, err = x.finish(b)
	return content, err
}

// FromText extracts content from raw text, one paragraph per line.
func (x *Extractor) FromText(text string) (content *ExtractedContent, err error) {
	b := newBuilder()
	for _, line := range strings.Split(text, "\n") {
		b.paragraph(line, section.FeaturesFor(line, false, 0, section.ModeText))
	}

	content, err = x.finish(b)
	return content, err
}

func (x *Extractor) finish(b *builder) (content *ExtractedContent, err error) {
	content = b.content
	if len(content.Blocks) == 0 && len(content.References) == 0 {
		err = &ExtractionError{Cause: errNoContent}
		return content, err
	}

	pieces := make([]chunker.Piece, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		pieces = append(pieces, chunker.Piece{Section: block.Section, Text: block.Text, Rows: block.Rows})
	}
	content.Chunks = chunker.Split(pieces, x.chunkSize)

	x.logger.Debugw("extracted source",
		"section_order", content.SectionOrder,
		"blocks", len(content.Blocks),
		"tables", len(content.Tables),
		"references", len(content.References),
		"chunks", len(content.Chunks),
	)

	return content, err
}

// runFeatures reads bold and size off the paragraph's first text run. Title and
// heading styles count as bold.
func runFeatures(p *docx.Paragraph) (bold bool, size float64) {
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

type builder struct {
	content      *ExtractedContent
	current      string
	inReferences bool
}

func newBuilder() (b *builder) {
	b = &builder{content: &ExtractedContent{}}
	return b
}

func (b *builder) open(label string) {
	b.current = label
	for _, existing := range b.content.SectionOrder {
		if existing == label {
			return
		}
	}
	b.content.SectionOrder = append(b.content.SectionOrder, label)
}

func (b *builder) paragraph(text string, f section.Features) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if section.IsReferencesStart(text) {
		b.inReferences = true
		b.open(section.ReferencesLabel)
		return
	}
	if b.inReferences {
		b.content.References = append(b.content.References, text)
		return
	}

	header := section.IsHeader(f)
	if header {
		b.open(text)
	}
	b.content.Blocks = append(b.content.Blocks, ContentBlock{
		Kind:     KindParagraph,
		Text:     text,
		Section:  b.current,
		IsHeader: header,
	})
}

// table keeps non-empty cells of non-empty rows; a table with no such rows is dropped.
func (b *builder) table(rows [][]string) {
	var flat [][]string
	for _, row := range rows {
		var cells []string
		for _, cell := range row {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			flat = append(flat, cells)
		}
	}
	if len(flat) == 0 {
		return
	}

	b.content.Tables = append(b.content.Tables, flat)
	b.content.Blocks = append(b.content.Blocks, ContentBlock{
		Kind:    KindTable,
		Rows:    flat,
		Section: b.current,
	})
}
