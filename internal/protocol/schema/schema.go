// Package schema maps typed payload records to and from value trees.
//
// Records and unions are declared once as ordered field lists built from
// accessor functions and read by one generic encoder and decoder. The host
// grammar has no map literal, so a record is written in one of the Formats
// below; decode reads record and map positions in that format and reads
// sequence positions directly.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/esmwire/internal/protocol/value"
)

// Format selects how record and map positions are laid out.
type Format uint8

const (
	// FormatPairs writes [[key, value], ...].
	FormatPairs Format = iota
	// FormatParallel writes [[keys...], [values...]] for older host scripts.
	FormatParallel
	// FormatObject writes JSON objects.
	FormatObject
)

func (f Format) String() string {
	switch f {
	case FormatPairs:
		return "pairs"
	case FormatParallel:
		return "parallel"
	case FormatObject:
		return "object"
	default:
		return fmt.Sprintf("format(%d)", f)
	}
}

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pairs":
		return FormatPairs, nil
	case "parallel":
		return FormatParallel, nil
	case "object", "json":
		return FormatObject, nil
	}
	return FormatPairs, fmt.Errorf("schema: unknown format %q", raw)
}

// ErrShape is matched by every ShapeError.
var ErrShape = errors.New("schema: payload shape mismatch")

// ShapeError reports a tree that does not fit the declared record or union.
type ShapeError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: type=%s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("schema: type=%s field=%s: %s", e.Type, e.Field, e.Reason)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// ReadEntries reads the key/value members of a record or map position.
// Object nodes are accepted in every format. Arrays are read as
// [[keys],[values]] under FormatParallel and as pairs otherwise.
func ReadEntries(v value.Value, f Format) ([]value.Entry, error) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindObject:
		entries, _ := v.Entries()
		return entries, nil
	case value.KindArray:
		items, _ := v.Items()
		if f == FormatParallel {
			return readParallel(items)
		}
		return readPairs(items)
	}
	return nil, fmt.Errorf("expected key/value list, got %s", v.Kind())
}

func readPairs(items []value.Value) ([]value.Entry, error) {
	entries := make([]value.Entry, 0, len(items))
	for i, item := range items {
		pair, ok := item.Items()
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("element %d is not a [key, value] pair", i)
		}
		key, ok := pair[0].Str()
		if !ok {
			return nil, fmt.Errorf("element %d has a %s key", i, pair[0].Kind())
		}
		entries = append(entries, value.Entry{Key: key, Value: pair[1]})
	}
	return entries, nil
}

func readParallel(items []value.Value) ([]value.Entry, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) != 2 {
		return nil, fmt.Errorf("expected [[keys], [values]], got %d elements", len(items))
	}
	keys, ok := items[0].Items()
	if !ok {
		return nil, fmt.Errorf("key list is a %s", items[0].Kind())
	}
	vals, ok := items[1].Items()
	if !ok {
		return nil, fmt.Errorf("value list is a %s", items[1].Kind())
	}
	if len(keys) != len(vals) {
		return nil, fmt.Errorf("%d keys but %d values", len(keys), len(vals))
	}
	entries := make([]value.Entry, len(keys))
	for i := range keys {
		key, ok := keys[i].Str()
		if !ok {
			return nil, fmt.Errorf("key %d is a %s", i, keys[i].Kind())
		}
		entries[i] = value.Entry{Key: key, Value: vals[i]}
	}
	return entries, nil
}

// WriteEntries lays out entries in format f.
func WriteEntries(entries []value.Entry, f Format) value.Value {
	switch f {
	case FormatObject:
		return value.Object(entries...)
	case FormatParallel:
		keys := make([]value.Value, len(entries))
		vals := make([]value.Value, len(entries))
		for i, e := range entries {
			keys[i] = value.String(e.Key)
			vals[i] = e.Value
		}
		return value.Array(value.Array(keys...), value.Array(vals...))
	default:
		pairs := make([]value.Value, len(entries))
		for i, e := range entries {
			pairs[i] = value.Array(value.String(e.Key), e.Value)
		}
		return value.Array(pairs...)
	}
}

func lookup(entries []value.Entry, key string) (value.Value, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Key == key {
			return entries[i].Value, true
		}
	}
	return value.Value{}, false
}

// ErrUnexpectedVariant is returned by As when a union value holds another variant.
var ErrUnexpectedVariant = errors.New("schema: unexpected variant")

// As returns x as variant T.
func As[T, U any](x U) (T, error) {
	t, ok := any(x).(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: have %T, want %T", ErrUnexpectedVariant, x, zero)
	}
	return t, nil
}
