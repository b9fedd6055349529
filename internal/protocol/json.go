package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
)

// ByteList is a byte slice written as a JSON array of numbers.
type ByteList []byte

func (b ByteList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%d", c)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (b *ByteList) UnmarshalJSON(raw []byte) error {
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return err
	}
	out := make(ByteList, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// wireMessage is the serialized form of Message. It has no session field.
type wireMessage struct {
	ID       *uuid.UUID      `json:"id"`
	Type     Type            `json:"type"`
	PeerID   ByteList        `json:"peer_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Errors   []Error         `json:"errors,omitempty"`
}

// MarshalJSON omits peer_id, data, metadata and errors when they are empty.
func (m *Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{ID: &m.ID, Type: m.Type, PeerID: ByteList(m.PeerID), Errors: m.Errors}
	if !data.IsEmpty(m.Data) {
		b, err := data.MarshalJSON(m.Data)
		if err != nil {
			return nil, err
		}
		w.Data = b
	}
	if !metadata.IsEmpty(m.Metadata) {
		b, err := metadata.MarshalJSON(m.Metadata)
		if err != nil {
			return nil, err
		}
		w.Metadata = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads a message body. Missing data, metadata and errors read
// as empty.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if w.ID == nil {
		return fmt.Errorf("%w: missing id", ErrInvalidID)
	}
	if !w.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, w.Type)
	}
	for i, e := range w.Errors {
		if !e.Kind.Valid() {
			return fmt.Errorf("%w: entry %d has type %q", ErrInvalidError, i, e.Kind)
		}
	}

	out := Message{ID: *w.ID, Type: w.Type, Data: data.Empty{}, Metadata: metadata.Empty{}, Errors: w.Errors}
	if len(w.PeerID) > 0 {
		out.PeerID = []byte(w.PeerID)
	}
	if isPresent(w.Data) {
		d, err := data.UnmarshalJSON(w.Data)
		if err != nil {
			return err
		}
		out.Data = d
	}
	if isPresent(w.Metadata) {
		md, err := metadata.UnmarshalJSON(w.Metadata)
		if err != nil {
			return err
		}
		out.Metadata = md
	}
	*m = out
	return nil
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
