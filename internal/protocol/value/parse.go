package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/esmwire/internal/protocol/lexer"
)

// MaxDepth bounds array/object nesting accepted by Parse.
const MaxDepth = 256

// ErrSyntax reports text that is not valid structured text.
var ErrSyntax = errors.New("value: invalid structured text")

// ParseHost normalizes raw host text with the lexer and parses the result.
func ParseHost(raw string) (Value, error) {
	return Parse(lexer.Normalize(raw))
}

// Parse reads one JSON value from text. Number literals are kept verbatim and
// object members keep their input order.
func Parse(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	v, err := parseNext(dec, 0)
	if err != nil {
		return Value{}, syntaxError(err, text)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, syntaxError(errors.New("trailing data after value"), text)
	}
	return v, nil
}

// ParseBytes is Parse for a byte slice.
func ParseBytes(b []byte) (Value, error) {
	return Parse(string(b))
}

func syntaxError(err error, text string) error {
	const maxEcho = 96
	if len(text) > maxEcho {
		text = text[:maxEcho] + "..."
	}
	return fmt.Errorf("%w: %v (input %q)", ErrSyntax, err, text)
}

func parseNext(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t.String()), nil
	case string:
		return String(t), nil
	case json.Delim:
		if depth >= MaxDepth {
			return Value{}, fmt.Errorf("nesting deeper than %d", MaxDepth)
		}
		switch t {
		case '[':
			return parseArray(dec, depth+1)
		case '{':
			return parseObject(dec, depth+1)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func parseArray(dec *json.Decoder, depth int) (Value, error) {
	items := make([]Value, 0, 4)
	for dec.More() {
		item, err := parseNext(dec, depth)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(items...), nil
}

func parseObject(dec *json.Decoder, depth int) (Value, error) {
	entries := make([]Entry, 0, 4)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key must be a string, got %v", tok)
		}
		member, err := parseNext(dec, depth)
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, Entry{Key: key, Value: member})
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Object(entries...), nil
}
