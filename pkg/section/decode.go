package section

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Object is an order-preserving decoded JSON object. Nested objects decode to
// *Object and arrays to []interface{}.
type Object struct {
	Keys   []string
	Values map[string]interface{}
}

// Get returns the raw value for key.
func (o *Object) Get(key string) (v interface{}, ok bool) {
	v, ok = o.Values[key]
	return v, ok
}

// Set replaces the raw value for key, appending new keys.
func (o *Object) Set(key string, v interface{}) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
}

// DecodeObject parses data as a JSON object, keeping key order.
func DecodeObject(data []byte) (obj *Object, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	v, err = decodeValue(dec)
	if err != nil {
		err = errors.Wrap(err, "failed to decode JSON")
		return obj, err
	}

	// Trailing garbage makes the document invalid.
	_, err = dec.Token()
	if err != io.EOF {
		err = errors.New("unexpected data after JSON object")
		return obj, err
	}
	err = nil

	var ok bool
	obj, ok = v.(*Object)
	if !ok {
		err = errors.Errorf("expected JSON object, got %T", v)
		return obj, err
	}

	return obj, err
}

func decodeValue(dec *json.Decoder) (v interface{}, err error) {
	var tok json.Token
	tok, err = dec.Token()
	if err != nil {
		return v, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &Object{Values: make(map[string]interface{})}
			for dec.More() {
				var keyTok json.Token
				keyTok, err = dec.Token()
				if err != nil {
					return v, err
				}
				key, ok := keyTok.(string)
				if !ok {
					err = errors.Errorf("expected object key, got %v", keyTok)
					return v, err
				}
				var child interface{}
				child, err = decodeValue(dec)
				if err != nil {
					return v, err
				}
				obj.Set(key, child)
			}
			_, err = dec.Token()
			v = obj
		case '[':
			arr := make([]interface{}, 0)
			for dec.More() {
				var child interface{}
				child, err = decodeValue(dec)
				if err != nil {
					return v, err
				}
				arr = append(arr, child)
			}
			_, err = dec.Token()
			v = arr
		default:
			err = errors.Errorf("unexpected delimiter %v", t)
		}
	default:
		v = t
	}

	return v, err
}

// CollapseRows removes singly-nested list wrappers from table data one level at a
// time ([[rows...]] -> [rows...]) until no further collapse applies, then checks that
// every remaining element is a row. ok is false when some element is not a list.
func CollapseRows(v []interface{}) (rows []interface{}, ok bool) {
	rows = v
	for len(rows) == 1 {
		inner, isList := rows[0].([]interface{})
		if !isList || !allLists(inner) || len(inner) == 0 {
			break
		}
		rows = inner
	}

	ok = allLists(rows)
	if !ok {
		rows = []interface{}{}
	}
	return rows, ok
}

func allLists(v []interface{}) (all bool) {
	all = true
	for _, item := range v {
		if _, isList := item.([]interface{}); !isList {
			all = false
			return all
		}
	}
	return all
}

// FromObject converts a decoded object into a Map, folding keys to lower case.
func FromObject(obj *Object) (m *Map) {
	m = NewMap()
	if obj == nil {
		return m
	}
	for _, k := range obj.Keys {
		m.Set(k, FromValue(obj.Values[k]))
	}
	return m
}

// FromValue converts one decoded JSON value into Content.
func FromValue(v interface{}) (c Content) {
	switch t := v.(type) {
	case nil:
		c = Text("")
	case string:
		c = Text(t)
	case *Object:
		c = Record(FromObject(t))
	case []interface{}:
		c = fromArray(t)
	default:
		c = Text(scalarString(t))
	}
	return c
}

func fromArray(arr []interface{}) (c Content) {
	if len(arr) == 0 {
		c = List()
		return c
	}

	allObjects, allArrays := true, true
	for _, item := range arr {
		if _, ok := item.(*Object); !ok {
			allObjects = false
		}
		if _, ok := item.([]interface{}); !ok {
			allArrays = false
		}
	}

	switch {
	case allObjects:
		entries := make([]*Map, 0, len(arr))
		for _, item := range arr {
			entries = append(entries, FromObject(item.(*Object)))
		}
		c = Entries(entries...)
	case allArrays:
		rows := make([][]string, 0, len(arr))
		for _, item := range arr {
			row := make([]string, 0)
			for _, cell := range item.([]interface{}) {
				row = append(row, Stringify(cell))
			}
			rows = append(rows, row)
		}
		c = Table(rows)
	default:
		items := make([]string, 0, len(arr))
		for _, item := range arr {
			items = append(items, Stringify(item))
		}
		c = List(items...)
	}
	return c
}

// Stringify flattens any decoded value to display text.
func Stringify(v interface{}) (s string) {
	switch t := v.(type) {
	case nil:
		s = ""
	case string:
		s = t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Stringify(item))
		}
		s = strings.Join(parts, ", ")
	case *Object:
		parts := make([]string, 0, len(t.Keys))
		for _, k := range t.Keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, Stringify(t.Values[k])))
		}
		s = strings.Join(parts, "; ")
	default:
		s = scalarString(t)
	}
	return s
}

func scalarString(v interface{}) (s string) {
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case bool:
		s = fmt.Sprintf("%t", t)
	default:
		s = fmt.Sprintf("%v", t)
	}
	return s
}
