package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
)

// Session is the process-local handle of the connection a message belongs
// to. It is never serialized.
type Session struct {
	ResourceID int64
	RemoteAddr string
}

// Message is the envelope exchanged between the extension and the operator.
type Message struct {
	ID       uuid.UUID
	Type     Type
	PeerID   []byte
	Session  *Session
	Data     data.Data
	Metadata metadata.Metadata
	Errors   []Error
}

// New returns a message of type t with a fresh v4 id and empty payloads.
func New(t Type) *Message {
	return &Message{
		ID:       uuid.New(),
		Type:     t,
		Data:     data.Empty{},
		Metadata: metadata.Empty{},
	}
}

func (m *Message) SetData(d data.Data) *Message {
	if d == nil {
		d = data.Empty{}
	}
	m.Data = d
	return m
}

func (m *Message) SetMetadata(md metadata.Metadata) *Message {
	if md == nil {
		md = metadata.Empty{}
	}
	m.Metadata = md
	return m
}

func (m *Message) SetPeerID(peerID []byte) *Message {
	m.PeerID = append([]byte(nil), peerID...)
	return m
}

// AttachSession binds the message to a local connection handle.
func (m *Message) AttachSession(s *Session) *Message {
	m.Session = s
	return m
}

func (m *Message) AddError(kind ErrorKind, content string) *Message {
	m.Errors = append(m.Errors, Error{Kind: kind, Content: content})
	return m
}

// SortErrors orders errors by kind, then content. Errors otherwise keep
// insertion order.
func (m *Message) SortErrors() {
	sort.SliceStable(m.Errors, func(i, j int) bool {
		if m.Errors[i].Kind != m.Errors[j].Kind {
			return m.Errors[i].Kind < m.Errors[j].Kind
		}
		return m.Errors[i].Content < m.Errors[j].Content
	})
}

func (m *Message) String() string {
	if m == nil {
		return "Message<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Message{id=%s type=%s", m.ID, m.Type)
	if len(m.PeerID) > 0 {
		fmt.Fprintf(&b, " peer=%q", m.PeerID)
	}
	fmt.Fprintf(&b, " data=%s metadata=%s errors=%d", data.Tag(m.Data), metadata.Tag(m.Metadata), len(m.Errors))
	if m.Session != nil {
		fmt.Fprintf(&b, " resource=%d", m.Session.ResourceID)
	}
	b.WriteByte('}')
	return b.String()
}

// ErrorKind controls how an error's content is read by the receiver.
type ErrorKind string

const (
	// ErrorCode content is a locale key.
	ErrorCode ErrorKind = "code"
	// ErrorMessage content is display text.
	ErrorMessage ErrorKind = "message"
)

func (k ErrorKind) Valid() bool {
	return k == ErrorCode || k == ErrorMessage
}

// Error is one entry in a message's error list.
type Error struct {
	Kind    ErrorKind `json:"type"`
	Content string    `json:"content"`
}

func NewCodeError(code string) Error {
	return Error{Kind: ErrorCode, Content: code}
}

func NewMessageError(message string) Error {
	return Error{Kind: ErrorMessage, Content: message}
}

func (e Error) String() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Content)
}
