package section

import (
	"encoding/json"
	"strings"
)

const (
	// ErrorKey marks a map as a failure rather than renderable content.
	ErrorKey = "error"
	// ReferencesKey holds the references list.
	ReferencesKey = "references"
	// TablesKey holds a record of named tables.
	TablesKey = "tables"
)

// Map is an insertion-ordered mapping from lower-cased section key to content.
// Keys are unique case-insensitively; Set folds the key before storing.
type Map struct {
	keys   []string
	values map[string]Content
}

// NewMap creates an empty map.
func NewMap() (m *Map) {
	m = &Map{values: make(map[string]Content)}
	return m
}

// Set inserts or replaces a key, keeping the position of an existing key.
func (m *Map) Set(key string, c Content) {
	key = strings.ToLower(strings.TrimSpace(key))
	if m.values == nil {
		m.values = make(map[string]Content)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = c
}

// Get returns the content for key, matched case-insensitively.
func (m *Map) Get(key string) (c Content, ok bool) {
	if m == nil {
		return c, ok
	}
	c, ok = m.values[strings.ToLower(strings.TrimSpace(key))]
	return c, ok
}

// Has reports whether the key exists.
func (m *Map) Has(key string) (ok bool) {
	_, ok = m.Get(key)
	return ok
}

// Delete removes a key.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() (keys []string) {
	if m == nil {
		return keys
	}
	keys = append([]string{}, m.keys...)
	return keys
}

// Len returns the number of keys.
func (m *Map) Len() (n int) {
	if m == nil {
		return n
	}
	n = len(m.keys)
	return n
}

// Error returns the failure description when the map carries an error key.
func (m *Map) Error() (msg string) {
	c, ok := m.Get(ErrorKey)
	if !ok {
		return msg
	}
	switch c.Kind {
	case KindText:
		msg = c.Text
	case KindList:
		msg = strings.Join(c.Items, "; ")
	default:
		msg = c.Canonical()
	}
	if strings.TrimSpace(msg) == "" {
		msg = "unknown error"
	}
	return msg
}

// IsDegraded reports whether the map represents a failure.
func (m *Map) IsDegraded() (degraded bool) {
	degraded = m.Has(ErrorKey)
	return degraded
}

// Value converts the map to a plain map for serialization.
func (m *Map) Value() (v map[string]interface{}) {
	v = make(map[string]interface{}, m.Len())
	if m == nil {
		return v
	}
	for _, k := range m.keys {
		v[k] = m.values[k].Value()
	}
	return v
}

// Clone returns a deep copy.
func (m *Map) Clone() (out *Map) {
	out = NewMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.values[k].Clone())
	}
	return out
}

// MarshalJSON writes the map with keys in insertion order.
func (m *Map) MarshalJSON() (data []byte, err error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		var keyJSON, valueJSON []byte
		keyJSON, err = json.Marshal(k)
		if err != nil {
			return data, err
		}
		valueJSON, err = json.Marshal(m.values[k].Value())
		if err != nil {
			return data, err
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valueJSON)
	}
	b.WriteByte('}')
	data = []byte(b.String())
	return data, err
}
