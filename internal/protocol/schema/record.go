package schema

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/esmwire/internal/protocol/value"
)

// Field is one named member of a record of type T.
type Field[T any] struct {
	Name     string
	Optional bool

	encode func(v *T, f Format) value.Value
	decode func(v *T, in value.Value, f Format) error
}

// Record is an ordered field list for T. Records are built once and are safe
// for concurrent use.
type Record[T any] struct {
	Name   string
	Fields []Field[T]
}

func NewRecord[T any](name string, fields ...Field[T]) *Record[T] {
	return &Record[T]{Name: name, Fields: fields}
}

// Encode writes every field in declaration order. Absent optional fields are
// written as null.
func (r *Record[T]) Encode(v *T, f Format) value.Value {
	entries := make([]value.Entry, len(r.Fields))
	for i, field := range r.Fields {
		entries[i] = value.Entry{Key: field.Name, Value: field.encode(v, f)}
	}
	return WriteEntries(entries, f)
}

// Decode reads a record from in. Null reads as a record with no members.
// Unknown keys are ignored.
func (r *Record[T]) Decode(in value.Value, f Format) (T, error) {
	var out T
	entries, err := ReadEntries(in, f)
	if err != nil {
		return out, r.fail("", err)
	}
	for _, field := range r.Fields {
		member, ok := lookup(entries, field.Name)
		if !ok || member.IsNull() {
			if field.Optional {
				continue
			}
			return out, r.fail(field.Name, errors.New("missing required field"))
		}
		if err := field.decode(&out, member, f); err != nil {
			return out, r.fail(field.Name, err)
		}
	}
	return out, nil
}

func (r *Record[T]) fail(field string, err error) error {
	var nested *ShapeError
	se := &ShapeError{Type: r.Name, Field: field, Reason: err.Error()}
	if errors.As(err, &nested) {
		se.Reason = nested.Reason
		if nested.Field != "" {
			se.Field = joinField(field, nested.Field)
		}
	}
	log.Debug().
		Str("record", r.Name).
		Str("field", se.Field).
		Str("reason", se.Reason).
		Msg("schema.Record decode failed")
	return se
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func String[T any](name string, get func(*T) *string) Field[T] {
	return Field[T]{
		Name:   name,
		encode: func(v *T, _ Format) value.Value { return value.String(*get(v)) },
		decode: func(v *T, in value.Value, _ Format) error {
			s, err := decodeString(in)
			*get(v) = s
			return err
		},
	}
}

func OptString[T any](name string, get func(*T) **string) Field[T] {
	return Field[T]{
		Name:     name,
		Optional: true,
		encode: func(v *T, _ Format) value.Value {
			if p := *get(v); p != nil {
				return value.String(*p)
			}
			return value.Null()
		},
		decode: func(v *T, in value.Value, _ Format) error {
			s, err := decodeString(in)
			if err != nil {
				return err
			}
			*get(v) = &s
			return nil
		},
	}
}

// NumberString reads a decimal carried as text. A bare number literal is
// accepted and kept verbatim; the text is never parsed.
func NumberString[T any](name string, get func(*T) *string) Field[T] {
	return Field[T]{
		Name:   name,
		encode: func(v *T, _ Format) value.Value { return value.String(*get(v)) },
		decode: func(v *T, in value.Value, _ Format) error {
			s, err := decodeNumberString(in)
			*get(v) = s
			return err
		},
	}
}

func OptNumberString[T any](name string, get func(*T) **string) Field[T] {
	return Field[T]{
		Name:     name,
		Optional: true,
		encode: func(v *T, _ Format) value.Value {
			if p := *get(v); p != nil {
				return value.String(*p)
			}
			return value.Null()
		},
		decode: func(v *T, in value.Value, _ Format) error {
			s, err := decodeNumberString(in)
			if err != nil {
				return err
			}
			*get(v) = &s
			return nil
		},
	}
}

func Bool[T any](name string, get func(*T) *bool) Field[T] {
	return Field[T]{
		Name:   name,
		encode: func(v *T, _ Format) value.Value { return value.Bool(*get(v)) },
		decode: func(v *T, in value.Value, _ Format) error {
			b, ok := in.Boolean()
			if !ok {
				return fmt.Errorf("expected boolean, got %s", in.Kind())
			}
			*get(v) = b
			return nil
		},
	}
}

// Time carries an RFC 3339 timestamp string.
func Time[T any](name string, get func(*T) *time.Time) Field[T] {
	return Field[T]{
		Name: name,
		encode: func(v *T, _ Format) value.Value {
			return value.String(get(v).UTC().Format(time.RFC3339Nano))
		},
		decode: func(v *T, in value.Value, _ Format) error {
			s, err := decodeString(in)
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fmt.Errorf("invalid timestamp %q", s)
			}
			*get(v) = ts.UTC()
			return nil
		},
	}
}

// Strings is an ordered list of strings. A nil slice is written as an empty
// list and an empty list reads back as nil.
func Strings[T any](name string, get func(*T) *[]string) Field[T] {
	return Field[T]{
		Name:   name,
		encode: func(v *T, _ Format) value.Value { return value.Strings(*get(v)...) },
		decode: func(v *T, in value.Value, _ Format) error {
			items, ok := in.Items()
			if !ok {
				return fmt.Errorf("expected list, got %s", in.Kind())
			}
			var out []string
			if len(items) > 0 {
				out = make([]string, len(items))
			}
			for i, item := range items {
				s, ok := item.Str()
				if !ok {
					return fmt.Errorf("element %d is a %s", i, item.Kind())
				}
				out[i] = s
			}
			*get(v) = out
			return nil
		},
	}
}

// StringMap is a string to string mapping written in the record's format. Like
// Strings, an empty mapping reads back as nil.
func StringMap[T any](name string, get func(*T) *map[string]string) Field[T] {
	return Field[T]{
		Name:   name,
		encode: func(v *T, f Format) value.Value { return encodeMap(*get(v), value.String, f) },
		decode: func(v *T, in value.Value, f Format) error {
			m, err := decodeMap(in, f, decodeString)
			if len(m) == 0 {
				m = nil
			}
			*get(v) = m
			return err
		},
	}
}

// OptNumberMap is an optional mapping to decimal strings. Nil means absent.
func OptNumberMap[T any](name string, get func(*T) *map[string]string) Field[T] {
	return Field[T]{
		Name:     name,
		Optional: true,
		encode: func(v *T, f Format) value.Value {
			m := *get(v)
			if m == nil {
				return value.Null()
			}
			return encodeMap(m, value.String, f)
		},
		decode: func(v *T, in value.Value, f Format) error {
			m, err := decodeMap(in, f, decodeNumberString)
			*get(v) = m
			return err
		},
	}
}

// OptMapList is an optional list of string mappings. Nil means absent.
func OptMapList[T any](name string, get func(*T) *[]map[string]string) Field[T] {
	return Field[T]{
		Name:     name,
		Optional: true,
		encode: func(v *T, f Format) value.Value {
			list := *get(v)
			if list == nil {
				return value.Null()
			}
			items := make([]value.Value, len(list))
			for i, m := range list {
				items[i] = encodeMap(m, value.String, f)
			}
			return value.Array(items...)
		},
		decode: func(v *T, in value.Value, f Format) error {
			items, ok := in.Items()
			if !ok {
				return fmt.Errorf("expected list, got %s", in.Kind())
			}
			out := make([]map[string]string, len(items))
			for i, item := range items {
				m, err := decodeMap(item, f, decodeString)
				if err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = m
			}
			*get(v) = out
			return nil
		},
	}
}

// Nested embeds a required record.
func Nested[T, N any](name string, rec *Record[N], get func(*T) *N) Field[T] {
	return Field[T]{
		Name:   name,
		encode: func(v *T, f Format) value.Value { return rec.Encode(get(v), f) },
		decode: func(v *T, in value.Value, f Format) error {
			n, err := rec.Decode(in, f)
			*get(v) = n
			return err
		},
	}
}

// OptNested embeds an optional record. Nil means absent.
func OptNested[T, N any](name string, rec *Record[N], get func(*T) **N) Field[T] {
	return Field[T]{
		Name:     name,
		Optional: true,
		encode: func(v *T, f Format) value.Value {
			p := *get(v)
			if p == nil {
				return value.Null()
			}
			return rec.Encode(p, f)
		},
		decode: func(v *T, in value.Value, f Format) error {
			n, err := rec.Decode(in, f)
			if err != nil {
				return err
			}
			*get(v) = &n
			return nil
		},
	}
}

func decodeString(in value.Value) (string, error) {
	s, ok := in.Str()
	if !ok {
		return "", fmt.Errorf("expected string, got %s", in.Kind())
	}
	return s, nil
}

func decodeNumberString(in value.Value) (string, error) {
	if s, ok := in.Str(); ok {
		return s, nil
	}
	if lit, ok := in.Literal(); ok {
		return lit, nil
	}
	return "", fmt.Errorf("expected number or numeric string, got %s", in.Kind())
}

func encodeMap(m map[string]string, wrap func(string) value.Value, f Format) value.Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]value.Entry, len(keys))
	for i, k := range keys {
		entries[i] = value.Entry{Key: k, Value: wrap(m[k])}
	}
	return WriteEntries(entries, f)
}

func decodeMap(in value.Value, f Format, read func(value.Value) (string, error)) (map[string]string, error) {
	entries, err := ReadEntries(in, f)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		s, err := read(e.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.Key, err)
		}
		out[e.Key] = s
	}
	return out, nil
}
