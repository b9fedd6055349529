package protocol

import (
	"errors"

	"github.com/danmuck/esmwire/internal/protocol/frame"
	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/seal"
	"github.com/danmuck/esmwire/internal/protocol/value"
)

var (
	ErrMissingPeerID  = errors.New("protocol: message has no peer id")
	ErrPeerMismatch   = errors.New("protocol: peer id in body does not match packet")
	ErrInvalidMessage = errors.New("protocol: invalid message body")
	ErrInvalidType    = errors.New("protocol: unknown message type")
	ErrInvalidID      = errors.New("protocol: invalid message id")
	ErrInvalidError   = errors.New("protocol: invalid error entry")
)

// Class groups errors by how a transport should react to them.
type Class int

const (
	ClassNone Class = iota
	// ClassParse is malformed bytes or text.
	ClassParse
	// ClassShape is well-formed input that does not fit a declared type.
	ClassShape
	// ClassCrypto is an authentication failure.
	ClassCrypto
	// ClassRouting is a missing or unusable peer key.
	ClassRouting
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassParse:
		return "parse"
	case ClassShape:
		return "shape"
	case ClassCrypto:
		return "crypto"
	case ClassRouting:
		return "routing"
	default:
		return "internal"
	}
}

// Classify maps err to its Class. Unrecognized errors are ClassInternal.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, seal.ErrDecrypt), errors.Is(err, ErrPeerMismatch):
		return ClassCrypto
	case errors.Is(err, seal.ErrUnknownPeer), errors.Is(err, seal.ErrKeyTooShort), errors.Is(err, ErrMissingPeerID):
		return ClassRouting
	case errors.Is(err, schema.ErrShape), errors.Is(err, schema.ErrUnexpectedVariant),
		errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidError):
		return ClassShape
	case errors.Is(err, value.ErrSyntax), errors.Is(err, ErrInvalidMessage),
		errors.Is(err, frame.ErrTruncated), errors.Is(err, frame.ErrEmptyPeerID),
		errors.Is(err, frame.ErrPacketTooLarge), errors.Is(err, frame.ErrPeerIDTooLong),
		errors.Is(err, frame.ErrNonceTooLong):
		return ClassParse
	}
	return ClassInternal
}
