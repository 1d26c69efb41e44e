// Package records loads, edits, and persists per-member publication records.
//
// The record file holds one Member Record per line. In memory the records are
// flattened into a Table with one Row per publication; Save regroups the Table
// and replaces the file.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Publication is one bibliographic entry with arbitrary fields.
// Field order follows the order in which fields were first set.
type Publication struct {
	keys   []string
	values map[string]any
}

// NewPublication builds a publication from alternating key/value pairs.
func NewPublication(kv ...any) Publication {
	var p Publication
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("records: NewPublication key %d is %T, want string", i, kv[i]))
		}
		p.Set(key, kv[i+1])
	}
	return p
}

// Len returns the number of fields.
func (p Publication) Len() int {
	return len(p.keys)
}

// Keys returns the field names in order.
func (p Publication) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Get returns the value of a field and whether it is present.
func (p Publication) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set assigns a field, appending it if new.
func (p *Publication) Set(key string, v any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Delete removes a field if present.
func (p *Publication) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
			break
		}
	}
}

// Clone returns an independent copy.
func (p Publication) Clone() Publication {
	c := Publication{keys: append([]string(nil), p.keys...)}
	if p.values != nil {
		c.values = make(map[string]any, len(p.values))
		for k, v := range p.values {
			c.values[k] = v
		}
	}
	return c
}

// Map returns the fields as a plain map.
func (p Publication) Map() map[string]any {
	m := make(map[string]any, len(p.values))
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

// Text returns the display form of a field. Missing and null fields are "".
func (p Publication) Text(key string) string {
	return textOf(p.values[key])
}

// SetText assigns a field from user-entered text, keeping the field's JSON
// type when the text still parses as that type.
func (p *Publication) SetText(key, text string) {
	old, exists := p.Get(key)
	switch old.(type) {
	case json.Number:
		if isJSONNumber(text) {
			p.Set(key, json.Number(text))
			return
		}
	case bool:
		if text == "true" || text == "false" {
			p.Set(key, text == "true")
			return
		}
	case json.RawMessage:
		if json.Valid([]byte(text)) {
			p.Set(key, json.RawMessage(text))
			return
		}
	case nil:
		if exists && text == "" {
			return
		}
	}
	p.Set(key, text)
}

// MarshalJSON encodes the publication as a JSON object in field order.
func (p Publication) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the source field order.
func (p *Publication) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid JSON")
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return fmt.Errorf("publication must be a JSON object")
	}
	*p = publicationFromResult(r)
	return nil
}

func (p Publication) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeValue(buf, p.values[k]); err != nil {
			return fmt.Errorf("encoding field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeValue writes v as JSON without HTML escaping.
func encodeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

func publicationFromResult(r gjson.Result) Publication {
	var p Publication
	r.ForEach(func(k, v gjson.Result) bool {
		p.Set(k.String(), scalarValue(v))
		return true
	})
	return p
}

// scalarValue converts a parsed JSON value. Numbers keep their source text;
// nested objects and arrays are kept as raw JSON.
func scalarValue(v gjson.Result) any {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Null:
		return nil
	default:
		return json.RawMessage(v.Raw)
	}
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case json.RawMessage:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func isJSONNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	r := gjson.Parse(s)
	return r.Type == gjson.Number && r.Raw == s
}
