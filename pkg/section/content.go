package section

import (
	"encoding/json"
	"strings"
)

// Kind discriminates the shape of a section's content.
type Kind int

const (
	// KindText is a plain string.
	KindText Kind = iota
	// KindList is an ordered list of strings.
	KindList
	// KindEntries is an ordered list of structured records (e.g. experience entries).
	KindEntries
	// KindTable is a list of rows, each row a list of cell strings.
	KindTable
	// KindRecord is a nested mapping of sub-key to content.
	KindRecord
)

// String returns the kind name used in logs.
func (k Kind) String() (name string) {
	switch k {
	case KindText:
		name = "text"
	case KindList:
		name = "list"
	case KindEntries:
		name = "entries"
	case KindTable:
		name = "table"
	case KindRecord:
		name = "record"
	default:
		name = "unknown"
	}
	return name
}

// Content is one section's value. Exactly one payload field is meaningful, selected by Kind.
type Content struct {
	Kind    Kind
	Text    string
	Items   []string
	Entries []*Map
	Rows    [][]string
	Record  *Map
}

// Text builds a KindText content.
func Text(s string) (c Content) {
	c = Content{Kind: KindText, Text: s}
	return c
}

// List builds a KindList content.
func List(items ...string) (c Content) {
	c = Content{Kind: KindList, Items: append([]string{}, items...)}
	return c
}

// Table builds a KindTable content.
func Table(rows [][]string) (c Content) {
	copied := make([][]string, 0, len(rows))
	for _, row := range rows {
		copied = append(copied, append([]string{}, row...))
	}
	c = Content{Kind: KindTable, Rows: copied}
	return c
}

// Entries builds a KindEntries content.
func Entries(entries ...*Map) (c Content) {
	c = Content{Kind: KindEntries, Entries: append([]*Map{}, entries...)}
	return c
}

// Record builds a KindRecord content.
func Record(m *Map) (c Content) {
	c = Content{Kind: KindRecord, Record: m}
	return c
}

// IsEmpty reports whether the content carries nothing renderable.
func (c Content) IsEmpty() (empty bool) {
	switch c.Kind {
	case KindText:
		empty = strings.TrimSpace(c.Text) == ""
	case KindList:
		empty = true
		for _, item := range c.Items {
			if strings.TrimSpace(item) != "" {
				empty = false
				break
			}
		}
	case KindEntries:
		empty = len(c.Entries) == 0
	case KindTable:
		empty = true
		for _, row := range c.Rows {
			for _, cell := range row {
				if strings.TrimSpace(cell) != "" {
					empty = false
					return empty
				}
			}
		}
	case KindRecord:
		empty = c.Record == nil || c.Record.Len() == 0
	default:
		empty = true
	}
	return empty
}

// Value converts the content back to plain JSON-compatible Go values.
func (c Content) Value() (v interface{}) {
	switch c.Kind {
	case KindText:
		v = c.Text
	case KindList:
		items := make([]interface{}, 0, len(c.Items))
		for _, item := range c.Items {
			items = append(items, item)
		}
		v = items
	case KindEntries:
		entries := make([]interface{}, 0, len(c.Entries))
		for _, entry := range c.Entries {
			entries = append(entries, entry.Value())
		}
		v = entries
	case KindTable:
		rows := make([]interface{}, 0, len(c.Rows))
		for _, row := range c.Rows {
			cells := make([]interface{}, 0, len(row))
			for _, cell := range row {
				cells = append(cells, cell)
			}
			rows = append(rows, cells)
		}
		v = rows
	case KindRecord:
		if c.Record != nil {
			v = c.Record.Value()
		}
	}
	return v
}

// Canonical returns a deterministic serialization used for structural equality.
// encoding/json sorts map keys, so equal records serialize identically.
func (c Content) Canonical() (s string) {
	data, err := json.Marshal(c.Value())
	if err != nil {
		s = ""
		return s
	}
	s = string(data)
	return s
}

// Clone returns a deep copy.
func (c Content) Clone() (out Content) {
	out = Content{Kind: c.Kind, Text: c.Text}
	if c.Items != nil {
		out.Items = append([]string{}, c.Items...)
	}
	if c.Rows != nil {
		out.Rows = Table(c.Rows).Rows
	}
	if c.Entries != nil {
		out.Entries = make([]*Map, 0, len(c.Entries))
		for _, entry := range c.Entries {
			out.Entries = append(out.Entries, entry.Clone())
		}
	}
	if c.Record != nil {
		out.Record = c.Record.Clone()
	}
	return out
}
