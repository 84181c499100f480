package expr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Dict is the insertion-ordered map produced by evaluating a map literal.
// Iteration order matches the literal's source order, which keeps generated
// class and style strings deterministic.
type Dict struct {
	keys  []string
	items map[string]any
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{items: map[string]any{}}
}

// Set stores a key, appending it to the iteration order if new.
func (d *Dict) Set(key string, value any) {
	if _, ok := d.items[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.items[key] = value
}

// Get returns the value for a key.
func (d *Dict) Get(key string) (any, bool) {
	v, ok := d.items[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	return d.keys
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return len(d.keys)
}

// GetAttr implements Object.
func (d *Dict) GetAttr(name string) (any, bool) {
	return d.Get(name)
}

// SetAttr implements MutableObject.
func (d *Dict) SetAttr(name string, value any) error {
	d.Set(name, value)
	return nil
}

// GetIndex implements Indexable.
func (d *Dict) GetIndex(key any) (any, error) {
	v, _ := d.items[DisplayString(key)]
	return v, nil
}

// SetIndex implements MutableIndexable.
func (d *Dict) SetIndex(key, value any) error {
	d.Set(DisplayString(key), value)
	return nil
}

// MarshalJSON writes the entries in insertion order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns a compact JSON rendering.
func (d *Dict) String() string {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("dict(len=%d)", d.Len())
	}
	return string(data)
}
