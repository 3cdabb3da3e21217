package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nikogura/doc-reformatter/pkg/extract"
	"github.com/nikogura/doc-reformatter/pkg/llm"
	"github.com/nikogura/doc-reformatter/pkg/section"
	"go.uber.org/zap"
)

const (
	// PreviewLength is the number of source characters kept in a degraded map.
	PreviewLength = 500
	// DegradedSummary is the summary text of a degraded map.
	DegradedSummary = "Unable to categorize due to AI response error"
)

// Output is the merged result of all chunks.
type Output struct {
	Map          *section.Map
	SectionOrder []string
	Errors       []string
}

// Degraded reports whether any chunk failed.
func (o Output) Degraded() (degraded bool) {
	degraded = len(o.Errors) > 0
	return degraded
}

// Merger combines per-chunk section maps.
type Merger struct {
	logger *zap.SugaredLogger
}

// NewMerger creates a merger.
func NewMerger(logger *zap.SugaredLogger) (m *Merger) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	m = &Merger{logger: logger}
	return m
}

// Merge combines results in chunk-index order, regardless of the order they are
// given in. When a value of one shape meets a value of another shape under the same
// key, the later chunk's value replaces the earlier one.
//
// If any chunk failed the returned map is degraded: it carries an error key, a
// source preview, the extracted tables and the references instead of merged content.
func (m *Merger) Merge(results []llm.Result, content *extract.ExtractedContent) (out Output) {
	sorted := append([]llm.Result{}, results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	merged := section.NewMap()
	for _, r := range sorted {
		if r.Err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("chunk %d: %s", r.Index, r.Err.Error()))
			continue
		}
		if r.Map == nil {
			out.Errors = append(out.Errors, fmt.Sprintf("chunk %d: no content", r.Index))
			continue
		}
		if r.Map.IsDegraded() {
			out.Errors = append(out.Errors, fmt.Sprintf("chunk %d: %s", r.Index, r.Map.Error()))
			continue
		}

		for _, key := range r.Map.Keys() {
			incoming, _ := r.Map.Get(key)
			existing, seen := merged.Get(key)
			if !seen {
				merged.Set(key, incoming.Clone())
				continue
			}
			merged.Set(key, m.mergeContent(key, existing, incoming))
		}
	}

	var references []string
	if content != nil {
		references = content.References
	}

	if len(out.Errors) > 0 {
		m.logger.Warnw("merge degraded", "errors", out.Errors)
		out.Map = degradedMap(out.Errors, content)
	} else {
		addReferences(merged, references)
		out.Map = merged
	}

	out.SectionOrder = order(content, out.Map)
	return out
}

func (m *Merger) mergeContent(key string, existing, incoming section.Content) (result section.Content) {
	if existing.Kind != incoming.Kind {
		m.logger.Debugw("section shape changed between chunks, keeping later value",
			"section", key, "earlier", existing.Kind.String(), "later", incoming.Kind.String())
		result = incoming.Clone()
		return result
	}

	switch existing.Kind {
	case section.KindText:
		result = section.Text(mergeText(existing.Text, incoming.Text))
	case section.KindList:
		result = section.List(appendMissing(existing.Items, incoming.Items)...)
	case section.KindEntries:
		result = section.Entries(mergeEntries(existing.Entries, incoming.Entries)...)
	case section.KindTable:
		result = section.Table(mergeRows(existing.Rows, incoming.Rows))
	case section.KindRecord:
		record := existing.Record.Clone()
		for _, sub := range incoming.Record.Keys() {
			in, _ := incoming.Record.Get(sub)
			if old, ok := record.Get(sub); ok {
				record.Set(sub, m.mergeContent(key+"."+sub, old, in))
				continue
			}
			record.Set(sub, in.Clone())
		}
		result = section.Record(record)
	default:
		result = incoming.Clone()
	}
	return result
}

// mergeText appends the lines of incoming that existing does not already contain.
func mergeText(existing, incoming string) (merged string) {
	present := make(map[string]bool)
	for _, line := range strings.Split(existing, "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var added []string
	for _, line := range strings.Split(incoming, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || present[trimmed] {
			continue
		}
		present[trimmed] = true
		added = append(added, line)
	}

	merged = existing
	if len(added) == 0 {
		return merged
	}
	if strings.TrimSpace(merged) == "" {
		merged = strings.Join(added, "\n")
		return merged
	}
	merged = merged + "\n" + strings.Join(added, "\n")
	return merged
}

func appendMissing(existing, incoming []string) (items []string) {
	items = append([]string{}, existing...)
	present := make(map[string]bool, len(existing))
	for _, item := range existing {
		present[item] = true
	}
	for _, item := range incoming {
		if present[item] {
			continue
		}
		present[item] = true
		items = append(items, item)
	}
	return items
}

func mergeEntries(existing, incoming []*section.Map) (entries []*section.Map) {
	present := make(map[string]bool, len(existing))
	for _, e := range existing {
		entries = append(entries, e.Clone())
		present[section.Record(e).Canonical()] = true
	}
	for _, e := range incoming {
		canonical := section.Record(e).Canonical()
		if present[canonical] {
			continue
		}
		present[canonical] = true
		entries = append(entries, e.Clone())
	}
	return entries
}

func mergeRows(existing, incoming [][]string) (rows [][]string) {
	present := make(map[string]bool, len(existing))
	for _, row := range existing {
		rows = append(rows, row)
		present[strings.Join(row, "\x1f")] = true
	}
	for _, row := range incoming {
		k := strings.Join(row, "\x1f")
		if present[k] {
			continue
		}
		present[k] = true
		rows = append(rows, row)
	}
	return rows
}

// addReferences puts the extracted references first, followed by any the model
// returned that are not among them.
func addReferences(m *section.Map, references []string) {
	if len(references) == 0 {
		return
	}
	combined := append([]string{}, references...)
	if existing, ok := m.Get(section.ReferencesKey); ok {
		switch existing.Kind {
		case section.KindList:
			combined = appendMissing(combined, existing.Items)
		case section.KindText:
			combined = appendMissing(combined, strings.Split(existing.Text, "\n"))
		default:
		}
	}
	m.Set(section.ReferencesKey, section.List(combined...))
}

func degradedMap(errs []string, content *extract.ExtractedContent) (m *section.Map) {
	m = section.NewMap()
	m.Set(section.ErrorKey, section.Text(strings.Join(errs, "; ")))
	m.Set("summary", section.Text(DegradedSummary))

	if content == nil {
		return m
	}

	preview := content.Text()
	if runes := []rune(preview); len(runes) > PreviewLength {
		preview = string(runes[:PreviewLength])
	}
	m.Set("background", section.Text(preview))

	tables := section.NewMap()
	for i, rows := range content.Tables {
		tables.Set(fmt.Sprintf("table_%d", i+1), section.Table(rows))
	}
	m.Set(section.TablesKey, section.Record(tables))
	m.Set(section.ReferencesKey, section.List(content.References...))
	return m
}

// order maps the extraction's section labels to keys and appends the map's
// remaining keys in map order.
func order(content *extract.ExtractedContent, m *section.Map) (keys []string) {
	seen := make(map[string]bool)
	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}

	if content != nil {
		for _, label := range content.SectionOrder {
			add(section.KeyFor(label))
		}
	}
	for _, k := range m.Keys() {
		add(k)
	}
	return keys
}
