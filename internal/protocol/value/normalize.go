package value

// Normalize reinterprets arrays of [string, value] pairs as objects, visiting
// every node once.
//
// The host has no map literal, so a mapping is written as an array of
// two-element arrays. The rule is a heuristic: a genuine list of pairs cannot
// be told apart from a mapping, and an empty array becomes an empty object.
// Typed decoding therefore reads records with schema-directed helpers instead
// of relying on this pass; Normalize serves untyped inspection.
//
// An array with a two-element member whose first slot is not a string stays a
// sequence. Its elements are still normalized.
func Normalize(v Value) Value {
	switch v.kind {
	case KindArray:
		if obj, ok := pairsToObject(v.items); ok {
			return obj
		}
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = Normalize(item)
		}
		return Array(items...)
	case KindObject:
		entries := make([]Entry, len(v.entries))
		for i, e := range v.entries {
			entries[i] = Entry{Key: e.Key, Value: Normalize(e.Value)}
		}
		return Object(entries...)
	default:
		return v
	}
}

func pairsToObject(items []Value) (Value, bool) {
	for _, item := range items {
		if !isPair(item) {
			return Value{}, false
		}
	}
	entries := make([]Entry, len(items))
	for i, item := range items {
		key, _ := item.items[0].Str()
		entries[i] = Entry{Key: key, Value: Normalize(item.items[1])}
	}
	return Object(entries...), true
}

func isPair(v Value) bool {
	if v.kind != KindArray || len(v.items) != 2 {
		return false
	}
	return v.items[0].kind == KindString
}
