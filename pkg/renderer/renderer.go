package renderer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/section"
	"github.com/nikogura/doc-reformatter/pkg/style"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// HorizontalSeparator joins the items of a horizontal list.
	HorizontalSeparator = " • "
	// BulletPrefix starts every bulleted paragraph.
	BulletPrefix = "• "
	// FieldSeparator joins fields on an entry's heading lines.
	FieldSeparator = " | "
)

// Renderer writes a section map into a document styled by template rules.
type Renderer struct {
	logger *zap.SugaredLogger
}

// NewRenderer creates a renderer.
func NewRenderer(logger *zap.SugaredLogger) (r *Renderer) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r = &Renderer{logger: logger}
	return r
}

// Render produces document bytes for m. Sections are written in order, then any keys
// of m that order does not name, then references. When template is given it is the
// starting document, and a template paragraph that mentions a section's label is
// filled in place instead of appending a new header.
//
// A degraded map renders as a single paragraph stating the error.
func (r *Renderer) Render(m *section.Map, order []string, rules *style.Rules, template []byte) (data []byte, err error) {
	if rules == nil {
		rules = style.DefaultRules()
	}

	if m.IsDegraded() {
		doc := docx.New()
		doc.AppendParagraph(docx.NewParagraph("Error: "+m.Error(), rules.Default.RunProps(), rules.Default.ParagraphFormat()))
		data, err = doc.Bytes()
		return data, err
	}

	var doc *docx.Document
	if len(template) > 0 {
		doc, err = docx.Open(template)
		if err != nil {
			err = errors.Wrap(err, "failed to open template for rendering")
			return data, err
		}
	} else {
		doc = docx.New()
	}

	w := &writer{doc: doc, rules: rules, logger: r.logger, used: make(map[*docx.Paragraph]bool), cursor: -1}
	if len(template) > 0 {
		w.placeholders = doc.Paragraphs()
	}

	for _, key := range renderOrder(m, order) {
		c, _ := m.Get(key)
		if c.IsEmpty() {
			continue
		}
		if key == section.TablesKey {
			w.tables(c)
			continue
		}
		w.section(key, c)
	}

	if refs, ok := m.Get(section.ReferencesKey); ok && !refs.IsEmpty() {
		w.references(refs)
	}

	data, err = doc.Bytes()
	if err != nil {
		err = errors.Wrap(err, "failed to serialize rendered document")
		return data, err
	}

	r.logger.Debugw("Rendered document", "sections", m.Len(), "bytes", len(data))
	return data, err
}

// renderOrder lists order followed by the remaining keys of m, without the error and
// references keys.
func renderOrder(m *section.Map, order []string) (keys []string) {
	seen := map[string]bool{section.ErrorKey: true, section.ReferencesKey: true}
	for _, key := range append(append([]string{}, order...), m.Keys()...) {
		key = strings.ToLower(strings.TrimSpace(key))
		if seen[key] || !m.Has(key) {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// WriteDocument writes rendered bytes to path, creating the parent directory.
func WriteDocument(path string, data []byte) (err error) {
	outputDir := filepath.Dir(path)
	err = os.MkdirAll(outputDir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create output directory: %s", outputDir)
		return err
	}

	err = os.WriteFile(path, data, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write document: %s", path)
		return err
	}
	return err
}

// writer emits blocks at a cursor: appended at the end of the body, or directly
// after a placeholder paragraph.
type writer struct {
	doc          *docx.Document
	rules        *style.Rules
	logger       *zap.SugaredLogger
	placeholders []*docx.Paragraph
	used         map[*docx.Paragraph]bool
	cursor       int
}

func (w *writer) appendAtEnd() {
	w.cursor = -1
}

func (w *writer) emit(b *docx.Block) {
	if w.cursor < 0 {
		if b.Kind == docx.BlockTable {
			w.doc.AppendTable(b.Table)
			return
		}
		w.doc.AppendParagraph(b.Paragraph)
		return
	}
	w.doc.Insert(w.cursor, b)
	w.cursor++
}

func (w *writer) paragraph(text string, props docx.RunProps, format docx.ParagraphFormat) {
	w.emit(&docx.Block{Kind: docx.BlockParagraph, Paragraph: docx.NewParagraph(text, props, format)})
}

func (w *writer) body(text string) {
	w.paragraph(text, w.rules.Default.RunProps(), w.rules.Default.ParagraphFormat())
}

func (w *writer) bullet(text string) {
	format := w.rules.Default.ParagraphFormat()
	format.Bullet = true
	w.paragraph(BulletPrefix+text, w.rules.Default.RunProps(), format)
}

// placeholder finds an unused template paragraph whose text mentions the label.
func (w *writer) placeholder(key string) (p *docx.Paragraph, ok bool) {
	labels := []string{strings.ToLower(section.DisplayName(key)), key}
	for _, candidate := range w.placeholders {
		if w.used[candidate] {
			continue
		}
		text := strings.ToLower(candidate.Text())
		for _, label := range labels {
			if label != "" && strings.Contains(text, label) {
				w.used[candidate] = true
				p, ok = candidate, true
				return p, ok
			}
		}
	}
	return p, ok
}

// header writes a section heading styled by the section's rule. Without a rule of
// its own the heading is the default style in bold.
func (w *writer) header(key string) {
	rule, ok := w.rules.For(key)
	if !ok {
		rule = w.rules.Default
		rule.Bold = true
	}
	w.paragraph(section.DisplayName(key), rule.RunProps(), rule.ParagraphFormat())
}

func (w *writer) section(key string, c section.Content) {
	if p, ok := w.placeholder(key); ok {
		if c.Kind == section.KindText {
			p.ReplaceText(strings.TrimSpace(c.Text))
			w.logger.Debugw("Filled placeholder", "section", key)
			return
		}
		w.cursor = w.doc.IndexOf(p) + 1
		defer w.appendAtEnd()
	} else {
		w.appendAtEnd()
		w.header(key)
	}

	w.content(key, c)
}

func (w *writer) content(key string, c section.Content) {
	switch c.Kind {
	case section.KindText:
		w.body(strings.TrimSpace(c.Text))

	case section.KindList:
		items := nonEmpty(c.Items)
		if rule, ok := w.rules.For(key); ok && rule.HorizontalList {
			w.body(strings.Join(items, HorizontalSeparator))
			return
		}
		for _, item := range items {
			w.bullet(item)
		}

	case section.KindTable:
		w.table(key, c.Rows)

	case section.KindEntries:
		for i, entry := range c.Entries {
			if entry == nil || entry.Len() == 0 {
				w.logger.Warnw("Skipping malformed entry", "section", key, "entry", i)
				continue
			}
			w.entry(entry)
		}

	case section.KindRecord:
		w.record(c.Record)

	default:
		w.logger.Warnw("Skipping section with unknown content shape", "section", key, "kind", c.Kind.String())
	}
}

func (w *writer) table(key string, rows [][]string) {
	if section.Table(rows).IsEmpty() {
		w.logger.Warnw("Skipping empty table", "section", key)
		return
	}
	rule, ok := w.rules.Table()
	if !ok {
		rule = w.rules.Default
	}
	t := docx.NewTable(rows, rule.RunProps(), docx.ParagraphFormat{Alignment: rule.Alignment})
	w.emit(&docx.Block{Kind: docx.BlockTable, Table: t})
}

// tables writes each named table of a tables record: after its placeholder when the
// template mentions the name, else under a heading of its own.
func (w *writer) tables(c section.Content) {
	if c.Kind != section.KindRecord {
		w.logger.Warnw("Skipping malformed tables section", "kind", c.Kind.String())
		return
	}
	for _, name := range c.Record.Keys() {
		t, _ := c.Record.Get(name)
		if t.Kind != section.KindTable || t.IsEmpty() {
			w.logger.Warnw("Skipping malformed table", "table", name, "kind", t.Kind.String())
			continue
		}
		if p, ok := w.placeholder(name); ok {
			w.cursor = w.doc.IndexOf(p) + 1
		} else {
			w.appendAtEnd()
			w.header(name)
		}
		w.table(name, t.Rows)
		w.appendAtEnd()
	}
}

// entryFields are the keys consumed by the entry sub-layout, per line.
//
//nolint:gochecknoglobals // fixed layout
var entryFields = struct {
	org, place, role, dates, body, bullets []string
}{
	org:     []string{"company", "organization", "employer", "institution", "school"},
	place:   []string{"location", "city"},
	role:    []string{"role", "title", "position", "job_title", "degree"},
	dates:   []string{"dates", "duration", "period", "date", "years"},
	body:    []string{"responsibilities", "description", "summary"},
	bullets: []string{"achievements", "highlights", "accomplishments"},
}

// entry writes one structured entry: organization and location line, role and dates
// line, responsibilities paragraph, bulleted achievements, then any other fields.
func (w *writer) entry(entry *section.Map) {
	consumed := make(map[string]bool)
	pick := func(keys []string) (value string) {
		for _, k := range keys {
			if c, ok := entry.Get(k); ok && !c.IsEmpty() {
				consumed[k] = true
				value = flatten(c)
				return value
			}
		}
		return value
	}

	heading := joinPresent(pick(entryFields.org), pick(entryFields.place))
	if heading != "" {
		props := w.rules.Default.RunProps()
		props.Bold = true
		w.paragraph(heading, props, w.rules.Default.ParagraphFormat())
	}

	subheading := joinPresent(pick(entryFields.role), pick(entryFields.dates))
	if subheading != "" {
		props := w.rules.Default.RunProps()
		props.Italic = true
		w.paragraph(subheading, props, w.rules.Default.ParagraphFormat())
	}

	for _, k := range entryFields.body {
		c, ok := entry.Get(k)
		if !ok || c.IsEmpty() {
			continue
		}
		consumed[k] = true
		if c.Kind == section.KindList {
			for _, item := range nonEmpty(c.Items) {
				w.bullet(item)
			}
		} else {
			w.body(flatten(c))
		}
		break
	}

	for _, k := range entryFields.bullets {
		c, ok := entry.Get(k)
		if !ok || c.IsEmpty() {
			continue
		}
		consumed[k] = true
		if c.Kind == section.KindList {
			for _, item := range nonEmpty(c.Items) {
				w.bullet(item)
			}
		} else {
			w.bullet(flatten(c))
		}
	}

	for _, k := range entry.Keys() {
		if consumed[k] {
			continue
		}
		c, _ := entry.Get(k)
		if c.IsEmpty() {
			continue
		}
		w.body(fmt.Sprintf("%s: %s", section.DisplayName(k), flatten(c)))
	}
}

// record writes a nested record as "Field: value" lines. Nested tables are emitted as
// tables.
func (w *writer) record(m *section.Map) {
	for _, k := range m.Keys() {
		c, _ := m.Get(k)
		if c.IsEmpty() {
			continue
		}
		if c.Kind == section.KindTable {
			w.body(section.DisplayName(k))
			w.table(k, c.Rows)
			continue
		}
		w.body(fmt.Sprintf("%s: %s", section.DisplayName(k), flatten(c)))
	}
}

// references writes the references section last, numbered from 1.
func (w *writer) references(c section.Content) {
	w.appendAtEnd()

	items := c.Items
	if c.Kind == section.KindText {
		items = strings.Split(c.Text, "\n")
	}
	items = nonEmpty(items)

	rule, ok := w.rules.For(section.ReferencesKey)
	if !ok {
		rule = w.rules.Default
		rule.Bold = true
	}
	w.paragraph(section.ReferencesLabel, rule.RunProps(), rule.ParagraphFormat())

	format := w.rules.Default.ParagraphFormat()
	format.Bullet = true
	for i, ref := range items {
		w.paragraph(fmt.Sprintf("%d. %s", i+1, ref), w.rules.Default.RunProps(), format)
	}
}

// flatten renders any content shape as a single line of text.
func flatten(c section.Content) (s string) {
	switch c.Kind {
	case section.KindText:
		s = strings.TrimSpace(c.Text)
	case section.KindList:
		s = strings.Join(nonEmpty(c.Items), ", ")
	case section.KindTable:
		rows := make([]string, 0, len(c.Rows))
		for _, row := range c.Rows {
			rows = append(rows, strings.Join(row, ", "))
		}
		s = strings.Join(rows, "; ")
	case section.KindEntries, section.KindRecord:
		s = section.Stringify(c.Value())
	}
	return s
}

func joinPresent(parts ...string) (joined string) {
	joined = strings.Join(nonEmpty(parts), FieldSeparator)
	return joined
}

func nonEmpty(items []string) (out []string) {
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
