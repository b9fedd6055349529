package schema

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/esmwire/internal/protocol/value"
)

const (
	TagKey     = "type"
	ContentKey = "content"
	EmptyTag   = "empty"
)

// Variant is one tagged member of a Union over the interface type U.
type Variant[U any] struct {
	Tag string

	match  func(U) bool
	encode func(U, Format) value.Value
	decode func(value.Value, Format) (U, error)
}

// Case declares the variant tag carried by values of type T, encoded with rec.
// T must implement U.
func Case[U, T any](tag string, rec *Record[T]) Variant[U] {
	var zero T
	if _, ok := any(zero).(U); !ok {
		panic(fmt.Sprintf("schema: %T does not implement the union type", zero))
	}
	return Variant[U]{
		Tag: tag,
		match: func(u U) bool {
			_, ok := any(u).(T)
			return ok
		},
		encode: func(u U, f Format) value.Value {
			t := any(u).(T)
			return rec.Encode(&t, f)
		},
		decode: func(in value.Value, f Format) (U, error) {
			t, err := rec.Decode(in, f)
			if err != nil {
				var zero U
				return zero, err
			}
			return any(t).(U), nil
		},
	}
}

// Union is a closed set of tagged variants plus an empty member. The empty
// member is what null or empty input decodes to.
type Union[U any] struct {
	Name     string
	empty    U
	variants []Variant[U]
	byTag    map[string]int
}

func NewUnion[U any](name string, empty U, variants ...Variant[U]) *Union[U] {
	u := &Union[U]{Name: name, empty: empty, variants: variants, byTag: make(map[string]int, len(variants))}
	for i, v := range variants {
		if _, dup := u.byTag[v.Tag]; dup || v.Tag == EmptyTag {
			panic(fmt.Sprintf("schema: duplicate variant tag %q in %s", v.Tag, name))
		}
		u.byTag[v.Tag] = i
	}
	return u
}

// Empty returns the empty member.
func (u *Union[U]) Empty() U { return u.empty }

// Tags lists the variant tags in declaration order, empty first.
func (u *Union[U]) Tags() []string {
	tags := make([]string, 0, len(u.variants)+1)
	tags = append(tags, EmptyTag)
	for _, v := range u.variants {
		tags = append(tags, v.Tag)
	}
	return tags
}

// IsEmpty reports whether x is the empty member or a nil interface.
func (u *Union[U]) IsEmpty(x U) bool {
	if any(x) == nil {
		return true
	}
	return any(x) == any(u.empty)
}

// Tag returns the variant tag of x.
func (u *Union[U]) Tag(x U) (string, error) {
	if u.IsEmpty(x) {
		return EmptyTag, nil
	}
	for _, v := range u.variants {
		if v.match(x) {
			return v.Tag, nil
		}
	}
	return "", &ShapeError{Type: u.Name, Reason: fmt.Sprintf("unsupported variant %T", x)}
}

// Encode writes x as a {type, content} envelope in format f. The empty member
// has no content.
func (u *Union[U]) Encode(x U, f Format) (value.Value, error) {
	if u.IsEmpty(x) {
		return WriteEntries([]value.Entry{{Key: TagKey, Value: value.String(EmptyTag)}}, f), nil
	}
	for _, v := range u.variants {
		if v.match(x) {
			return WriteEntries([]value.Entry{
				{Key: TagKey, Value: value.String(v.Tag)},
				{Key: ContentKey, Value: v.encode(x, f)},
			}, f), nil
		}
	}
	return value.Value{}, &ShapeError{Type: u.Name, Reason: fmt.Sprintf("unsupported variant %T", x)}
}

// Decode reads an envelope. Accepted shapes are an object or key/value list
// with "type" and "content" members, and the positional form [tag, content].
// Missing or null content reads as a record with no members.
func (u *Union[U]) Decode(in value.Value, f Format) (U, error) {
	switch in.Kind() {
	case value.KindNull:
		return u.empty, nil
	case value.KindArray, value.KindObject:
		if in.Len() == 0 {
			return u.empty, nil
		}
	}

	tag, content, err := u.envelope(in, f)
	if err != nil {
		return u.fail("", err)
	}
	if tag == EmptyTag {
		return u.empty, nil
	}
	i, ok := u.byTag[tag]
	if !ok {
		return u.fail(TagKey, fmt.Errorf("unknown variant %q", tag))
	}
	out, err := u.variants[i].decode(content, f)
	if err != nil {
		log.Debug().Str("union", u.Name).Str("tag", tag).Err(err).Msg("schema.Union decode failed")
		var zero U
		return zero, err
	}
	return out, nil
}

func (u *Union[U]) envelope(in value.Value, f Format) (string, value.Value, error) {
	if items, ok := in.Items(); ok && len(items) == 2 {
		if tag, ok := items[0].Str(); ok {
			return tag, items[1], nil
		}
	}
	entries, err := ReadEntries(in, f)
	if err != nil {
		return "", value.Value{}, err
	}
	rawTag, ok := lookup(entries, TagKey)
	if !ok {
		return "", value.Value{}, fmt.Errorf("missing %q member", TagKey)
	}
	tag, ok := rawTag.Str()
	if !ok {
		return "", value.Value{}, fmt.Errorf("%q member is a %s", TagKey, rawTag.Kind())
	}
	content, _ := lookup(entries, ContentKey)
	return tag, content, nil
}

func (u *Union[U]) fail(field string, err error) (U, error) {
	log.Debug().Str("union", u.Name).Str("field", field).Err(err).Msg("schema.Union decode failed")
	var zero U
	return zero, &ShapeError{Type: u.Name, Field: field, Reason: err.Error()}
}
