package protocol

import (
	"fmt"
	"strings"
)

// Type is the message kind, carried on the wire as a snake_case tag.
type Type string

const (
	TypeConnect    Type = "connect"
	TypeDisconnect Type = "disconnect"
	TypePing       Type = "ping"
	TypePong       Type = "pong"
	TypeTest       Type = "test"
	TypeError      Type = "error"
	TypeResume     Type = "resume"
	TypePause      Type = "pause"

	// TypeInit carries bootstrap payloads.
	TypeInit Type = "init"
	// TypeEvent is a client event such as a response callback.
	TypeEvent Type = "event"
	// TypeQuery is a database query.
	TypeQuery Type = "query"
	// TypeArma asks the host to run a function.
	TypeArma Type = "arma"
)

var types = []Type{
	TypeConnect, TypeDisconnect, TypePing, TypePong, TypeTest, TypeError,
	TypeResume, TypePause, TypeInit, TypeEvent, TypeQuery, TypeArma,
}

// Types lists every message type.
func Types() []Type {
	return append([]Type(nil), types...)
}

func (t Type) Valid() bool {
	for _, known := range types {
		if t == known {
			return true
		}
	}
	return false
}

func (t Type) String() string { return string(t) }

// ParseType reads a type tag. Surrounding blanks and quotes are ignored.
func ParseType(raw string) (Type, error) {
	t := Type(strings.Trim(strings.TrimSpace(raw), `"`))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, raw)
	}
	return t, nil
}
