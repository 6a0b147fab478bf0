package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Document is the plain-object form every store reads and writes. IDs are strings under "id".
type Document map[string]any

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ID returns the document id or "" when absent.
func (d Document) ID() string {
	s, _ := d["id"].(string)
	return s
}

var ErrNoDocument = errors.New("resource: no document")

// DuplicateKey is one offending unique value.
type DuplicateKey struct {
	Field string
	Value any
}

// DuplicateKeyError is raised by a store when a write would violate a unique field.
type DuplicateKeyError struct {
	Keys []DuplicateKey
}

func (e *DuplicateKeyError) Error() string {
	parts := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k.Field, k.Value))
	}
	return "resource: duplicate key " + strings.Join(parts, ", ")
}

// CastError is raised when a value cannot be converted to the field's type.
type CastError struct {
	Field string
	Value any
}

func (e *CastError) Error() string {
	return fmt.Sprintf("resource: cannot cast %v for field %s", e.Value, e.Field)
}

// ValidationErrors maps a field name to its first failing rule message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return "Invalid input data: " + v.Summary()
}

// Summary lists "field: message" pairs in field order.
func (v ValidationErrors) Summary() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return strings.Join(parts, ", ")
}

// Add records msg for field unless a message is already present.
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns nil when nothing was recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
