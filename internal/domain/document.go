package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// VectorField is the reserved attribute that carries the embedding of an augmented document.
const VectorField = "_vector"

// Document is one input JSON object of unknown shape.
// Keys keep their input order and values stay verbatim, so a document
// round-trips through the pipeline without reformatting unrelated fields.
type Document struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewDocument creates an empty document.
func NewDocument() Document {
	return Document{fields: orderedmap.New[string, json.RawMessage]()}
}

// Get returns the raw JSON value of a field.
func (d Document) Get(key string) (json.RawMessage, bool) {
	if d.fields == nil {
		return nil, false
	}
	return d.fields.Get(key)
}

// Set stores a raw JSON value, keeping the key's position when it already exists.
func (d *Document) Set(key string, value json.RawMessage) {
	if d.fields == nil {
		d.fields = orderedmap.New[string, json.RawMessage]()
	}
	d.fields.Set(key, value)
}

// Clone returns a copy that shares no ordering state with d.
func (d Document) Clone() Document {
	out := NewDocument()
	if d.fields == nil {
		return out
	}
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.fields.Set(pair.Key, pair.Value)
	}
	return out
}

// With returns a copy of d with key set to the JSON encoding of value.
func (d Document) With(key string, value any) (Document, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Document{}, fmt.Errorf("marshal field %q: %w", key, err)
	}
	out := d.Clone()
	out.Set(key, raw)
	return out, nil
}

// Without returns a copy of d without key.
func (d Document) Without(key string) Document {
	out := d.Clone()
	out.fields.Delete(key)
	return out
}

// MarshalJSON writes fields in document order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if d.fields != nil {
		first := true
		for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := json.Marshal(pair.Key)
			if err != nil {
				return nil, fmt.Errorf("marshal key: %w", err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			if len(pair.Value) == 0 {
				buf.WriteString("null")
				continue
			}
			buf.Write(pair.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, rejecting any other JSON type.
// A repeated key keeps its first position and its last value.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object, got %v: %w", tok, ErrInvalidInput)
	}

	fields := orderedmap.New[string, json.RawMessage]()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read field name: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v: %w", tok, ErrInvalidInput)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("read field %q: %w", key, err)
		}
		fields.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read document end: %w", err)
	}

	d.fields = fields
	return nil
}

// DecodeDocuments reads a JSON array of objects.
func DecodeDocuments(r io.Reader) ([]Document, error) {
	dec := json.NewDecoder(r)
	var docs []Document
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode documents: %v: %w", err, ErrInvalidInput)
	}
	if docs == nil {
		return nil, fmt.Errorf("decode documents: expected a JSON array: %w", ErrInvalidInput)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode documents: trailing data after array: %w", ErrInvalidInput)
	}
	return docs, nil
}
