package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Member is a single key/value pair of a JSON object.
// Value holds the member's original JSON text.
type Member struct {
	Key   string
	Value json.RawMessage
}

// Object is a JSON object that keeps its members in document order.
// Values are held as raw JSON so members that are never touched are
// written back exactly as they were read.
type Object struct {
	members []Member
}

// UnmarshalJSON decodes a JSON object, preserving member order.
// A repeated key keeps its first position and its last value.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	o.members = o.members[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode value of %q: %w", key, err)
		}
		o.Set(key, value)
	}

	// Closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}

	return nil
}

// MarshalJSON encodes the object with members in their stored order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeString(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(m.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(m.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Len returns the number of members.
func (o *Object) Len() int {
	return len(o.members)
}

// Keys returns member keys in order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.members))
	for i, m := range o.members {
		keys[i] = m.Key
	}
	return keys
}

// Has reports whether the object has a member named key.
func (o *Object) Has(key string) bool {
	return o.index(key) >= 0
}

// Get returns the raw value of key.
func (o *Object) Get(key string) (json.RawMessage, bool) {
	i := o.index(key)
	if i < 0 {
		return nil, false
	}
	return o.members[i].Value, true
}

// Set replaces the value of an existing member in place, or appends a new
// member at the end.
func (o *Object) Set(key string, value json.RawMessage) {
	if i := o.index(key); i >= 0 {
		o.members[i].Value = value
		return
	}
	o.members = append(o.members, Member{Key: key, Value: value})
}

// SetValue marshals v and stores it under key.
func (o *Object) SetValue(key string, v any) error {
	raw, err := encodeValue(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	o.Set(key, raw)
	return nil
}

// Delete removes key and returns its previous value.
func (o *Object) Delete(key string) (json.RawMessage, bool) {
	i := o.index(key)
	if i < 0 {
		return nil, false
	}
	value := o.members[i].Value
	o.members = append(o.members[:i], o.members[i+1:]...)
	return value, true
}

func (o *Object) index(key string) int {
	for i, m := range o.members {
		if m.Key == key {
			return i
		}
	}
	return -1
}

// encodeValue marshals v without HTML escaping and without the trailing
// newline json.Encoder appends.
func encodeValue(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encodeString(s string) ([]byte, error) {
	return encodeValue(s)
}
