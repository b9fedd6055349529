package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/value"
)

// HostMessage is a message as the host script hands it over: five strings.
// Data and Metadata are {type, content} envelopes and Errors is a list of
// [["type", kind], ["content", text]] entries, all in host text.
type HostMessage struct {
	ID       string
	Type     string
	Data     string
	Metadata string
	Errors   string
}

var errorRecord = schema.NewRecord("error",
	schema.String("type", func(e *Error) *string { return (*string)(&e.Kind) }),
	schema.String("content", func(e *Error) *string { return &e.Content }),
)

// FromHost builds a message from host text. Blank or nil parts read as empty.
func FromHost(h HostMessage, f schema.Format) (*Message, error) {
	t, err := ParseType(h.Type)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(strings.Trim(strings.TrimSpace(h.ID), `"`))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidID, h.ID, err)
	}
	m := New(t)
	m.ID = id

	if !isBlankHost(h.Data) {
		d, err := data.DecodeHost(h.Data, f)
		if err != nil {
			return nil, fmt.Errorf("protocol: data: %w", err)
		}
		m.SetData(d)
	}
	if !isBlankHost(h.Metadata) {
		md, err := metadata.DecodeHost(h.Metadata, f)
		if err != nil {
			return nil, fmt.Errorf("protocol: metadata: %w", err)
		}
		m.SetMetadata(md)
	}
	if !isBlankHost(h.Errors) {
		errs, err := decodeHostErrors(h.Errors, f)
		if err != nil {
			return nil, err
		}
		m.Errors = errs
	}
	return m, nil
}

// ToHost renders m as host text in format f.
func (m *Message) ToHost(f schema.Format) (HostMessage, error) {
	d, err := data.EncodeHost(m.Data, f)
	if err != nil {
		return HostMessage{}, err
	}
	md, err := metadata.EncodeHost(m.Metadata, f)
	if err != nil {
		return HostMessage{}, err
	}
	errs := make([]value.Value, len(m.Errors))
	for i := range m.Errors {
		errs[i] = errorRecord.Encode(&m.Errors[i], f)
	}
	return HostMessage{
		ID:       m.ID.String(),
		Type:     string(m.Type),
		Data:     value.Render(d),
		Metadata: value.Render(md),
		Errors:   value.Render(value.Array(errs...)),
	}, nil
}

func decodeHostErrors(raw string, f schema.Format) ([]Error, error) {
	tree, err := value.ParseHost(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: errors: %w", err)
	}
	if tree.IsNull() {
		return nil, nil
	}
	items, ok := tree.Items()
	if !ok {
		return nil, fmt.Errorf("%w: expected a list, got %s", ErrInvalidError, tree.Kind())
	}
	out := make([]Error, 0, len(items))
	for i, item := range items {
		e, err := errorRecord.Decode(item, f)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidError, i, err)
		}
		if !e.Kind.Valid() {
			return nil, fmt.Errorf("%w: entry %d has type %q", ErrInvalidError, i, e.Kind)
		}
		out = append(out, e)
	}
	return out, nil
}

func isBlankHost(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "", "nil", "<null>":
		return true
	}
	return false
}
