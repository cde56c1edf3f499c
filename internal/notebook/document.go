package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	cellsKey    = "cells"
	idKey       = "id"
	metadataKey = "metadata"
)

// ErrMalformed indicates the file is not a notebook document that can be repaired.
var ErrMalformed = errors.New("malformed notebook")

// Document is a parsed notebook. Top-level members other than cells are kept
// opaquely and written back unchanged.
type Document struct {
	root     Object
	cells    []*Cell
	hasCells bool
}

// Cell is one notebook cell. All members besides id and metadata.id pass
// through untouched.
type Cell struct {
	Object
}

// Parse decodes notebook JSON.
// Syntax errors and structural problems (root not an object, cells not an
// array of objects) are reported wrapped in ErrMalformed.
func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, &doc.root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	raw, ok := doc.root.Get(cellsKey)
	if !ok {
		return doc, nil
	}
	doc.hasCells = true

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: %q is not an array", ErrMalformed, cellsKey)
	}

	doc.cells = make([]*Cell, 0, len(items))
	for i, item := range items {
		cell := &Cell{}
		if err := json.Unmarshal(item, &cell.Object); err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", ErrMalformed, i, err)
		}
		doc.cells = append(doc.cells, cell)
	}

	return doc, nil
}

// Load reads and parses the notebook at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook: %w", err)
	}
	return Parse(data)
}

// HasCells reports whether the document has a cells member.
func (d *Document) HasCells() bool {
	return d.hasCells
}

// Cells returns the document's cells in order.
func (d *Document) Cells() []*Cell {
	return d.cells
}

// Encode serializes the document with one-space indentation, literal
// non-ASCII text and exactly one trailing newline. String escapes from the
// input such as \u00e9 are written as the characters they stand for.
func (d *Document) Encode() ([]byte, error) {
	if d.hasCells {
		if err := d.root.SetValue(cellsKey, d.cells); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to encode notebook: %w", err)
	}

	data, err := normalizeStrings(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode notebook: %w", err)
	}
	return data, nil
}

// Save encodes the document and overwrites path, keeping the file's mode.
// Encoding completes before the file is touched.
func (d *Document) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	return os.WriteFile(path, data, perm)
}

// ID returns the cell's identifier. A missing, non-string or empty id
// reports false.
func (c *Cell) ID() (string, bool) {
	raw, ok := c.Get(idKey)
	if !ok {
		return "", false
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// RawID returns the id member as written in the file, if present.
func (c *Cell) RawID() (string, bool) {
	raw, ok := c.Get(idKey)
	if !ok {
		return "", false
	}
	return string(raw), true
}

// SetID assigns the cell identifier. A new id member is appended after the
// existing members.
func (c *Cell) SetID(id string) error {
	return c.SetValue(idKey, id)
}

// MetadataID returns the stray id stored under metadata, if present.
func (c *Cell) MetadataID() (json.RawMessage, bool) {
	meta, ok := c.metadata()
	if !ok {
		return nil, false
	}
	return meta.Get(idKey)
}

// RemoveMetadataID deletes metadata.id and returns the removed value.
// Cells without a metadata object are left untouched.
func (c *Cell) RemoveMetadataID() (json.RawMessage, bool, error) {
	meta, ok := c.metadata()
	if !ok {
		return nil, false, nil
	}
	removed, ok := meta.Delete(idKey)
	if !ok {
		return nil, false, nil
	}
	if err := c.SetValue(metadataKey, meta); err != nil {
		return nil, false, err
	}
	return removed, true, nil
}

func (c *Cell) metadata() (*Object, bool) {
	raw, ok := c.Get(metadataKey)
	if !ok {
		return nil, false
	}
	meta := &Object{}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, false
	}
	return meta, true
}
