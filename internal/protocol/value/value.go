// Package value is the canonical tree between raw host text and typed payloads.
//
// The host grammar only has null, numbers, booleans, strings and arrays. Object
// nodes exist for the normalized form (arrays of pairs read as mappings) and
// for JSON input. Numbers keep their literal text so that large counters and
// money amounts never pass through a float.
package value

import (
	"fmt"
	"strings"
)

// Kind identifies the active member of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Value is one node of the tree. The zero Value is null.
type Value struct {
	kind    Kind
	text    string
	boolean bool
	items   []Value
	entries []Entry
}

// Entry is one key/value member of an object node.
type Entry struct {
	Key   string
	Value Value
}

func Null() Value { return Value{} }

// Number returns a number node carrying literal as-is.
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

func String(s string) Value { return Value{kind: KindString, text: s} }

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

func Object(entries ...Entry) Value {
	if entries == nil {
		entries = []Entry{}
	}
	return Value{kind: KindObject, entries: entries}
}

// Strings returns an array node of string nodes.
func Strings(ss ...string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Array(items...)
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string content of a string node.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// Literal returns the literal text of a number node.
func (v Value) Literal() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.text, true
}

func (v Value) Boolean() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.boolean, true
}

// Items returns the elements of an array node. The slice is shared.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.items, true
}

// Entries returns the members of an object node in input order. The slice is shared.
func (v Value) Entries() ([]Entry, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.entries, true
}

// Len returns the number of elements or members, 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.entries)
	}
	return 0
}

// Lookup returns the member named key of an object node. Duplicate keys
// resolve to the last occurrence.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for i := len(v.entries) - 1; i >= 0; i-- {
		if v.entries[i].Key == key {
			return v.entries[i].Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether a and b are the same tree. Object member order is
// significant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindNumber, KindString:
		return a.text == b.text
	case KindBool:
		return a.boolean == b.boolean
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.entries) != len(b.entries) {
			return false
		}
		for i := range a.entries {
			if a.entries[i].Key != b.entries[i].Key || !Equal(a.entries[i].Value, b.entries[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v as host text; see Render.
func (v Value) String() string {
	return Render(v)
}

// Render writes v in the host grammar: strings quoted with embedded quotes
// doubled, null as nil, objects as arrays of [key, value] pairs.
func Render(v Value) string {
	var b strings.Builder
	render(&b, v)
	return b.String()
}

func render(b *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		b.WriteString("nil")
	case KindNumber:
		b.WriteString(v.text)
	case KindBool:
		if v.boolean {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindString:
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(v.text, `"`, `""`))
		b.WriteByte('"')
	case KindArray:
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteByte(',')
			}
			render(b, item)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('[')
		for i, e := range v.entries {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			render(b, String(e.Key))
			b.WriteByte(',')
			render(b, e.Value)
			b.WriteByte(']')
		}
		b.WriteByte(']')
	}
}
