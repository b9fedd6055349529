// Package frame lays out one encrypted packet:
//
//	[1 byte: N] [N bytes: peer_id] [1 byte: M] [M bytes: nonce] [rest: ciphertext+tag]
//
// The ciphertext runs to the end of the packet, so a packet has no trailer
// and the transport must deliver whole packets.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxFieldLen is the largest peer id or nonce a one-byte prefix can describe.
const MaxFieldLen = 255

var (
	ErrEmptyPeerID    = errors.New("frame: empty peer id")
	ErrPeerIDTooLong  = errors.New("frame: peer id longer than 255 bytes")
	ErrNonceTooLong   = errors.New("frame: nonce longer than 255 bytes")
	ErrTruncated      = errors.New("frame: truncated packet")
	ErrPacketTooLarge = errors.New("frame: packet too large")
)

// Frame is one decoded packet. Decode returns slices that alias the input.
type Frame struct {
	PeerID     []byte
	Nonce      []byte
	Ciphertext []byte
}

// Limits constrains packet size for encode and decode.
type Limits struct {
	MaxPacketBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPacketBytes: 8 * 1024 * 1024,
	}
}

// Size returns the encoded length of f.
func (f Frame) Size() int {
	return 2 + len(f.PeerID) + len(f.Nonce) + len(f.Ciphertext)
}

// Encode lays out f under DefaultLimits.
func Encode(f Frame) ([]byte, error) {
	return EncodeLimits(f, DefaultLimits())
}

func EncodeLimits(f Frame, limits Limits) ([]byte, error) {
	if len(f.PeerID) == 0 {
		return nil, ErrEmptyPeerID
	}
	if len(f.PeerID) > MaxFieldLen {
		return nil, fmt.Errorf("%w: %d", ErrPeerIDTooLong, len(f.PeerID))
	}
	if len(f.Nonce) > MaxFieldLen {
		return nil, fmt.Errorf("%w: %d", ErrNonceTooLong, len(f.Nonce))
	}
	size := f.Size()
	if limits.MaxPacketBytes > 0 && size > limits.MaxPacketBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, size, limits.MaxPacketBytes)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(len(f.PeerID)))
	buf = append(buf, f.PeerID...)
	buf = append(buf, byte(len(f.Nonce)))
	buf = append(buf, f.Nonce...)
	buf = append(buf, f.Ciphertext...)
	return buf, nil
}

// Decode splits packet under DefaultLimits.
func Decode(packet []byte) (Frame, error) {
	return DecodeLimits(packet, DefaultLimits())
}

func DecodeLimits(packet []byte, limits Limits) (Frame, error) {
	if limits.MaxPacketBytes > 0 && len(packet) > limits.MaxPacketBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, len(packet), limits.MaxPacketBytes)
	}
	if len(packet) == 0 {
		return Frame{}, fmt.Errorf("%w: missing peer id length", ErrTruncated)
	}
	n := int(packet[0])
	if n == 0 {
		return Frame{}, ErrEmptyPeerID
	}
	rest := packet[1:]
	if len(rest) < n {
		return Frame{}, fmt.Errorf("%w: peer id wants %d bytes, have %d", ErrTruncated, n, len(rest))
	}
	peerID := rest[:n]
	rest = rest[n:]

	if len(rest) == 0 {
		return Frame{}, fmt.Errorf("%w: missing nonce length", ErrTruncated)
	}
	m := int(rest[0])
	rest = rest[1:]
	if len(rest) < m {
		return Frame{}, fmt.Errorf("%w: nonce wants %d bytes, have %d", ErrTruncated, m, len(rest))
	}

	return Frame{
		PeerID:     peerID,
		Nonce:      rest[:m],
		Ciphertext: rest[m:],
	}, nil
}

// ReadFrame reads r to EOF as one packet.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	max := limits.MaxPacketBytes
	if max <= 0 {
		max = DefaultLimits().MaxPacketBytes
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(max)+1)); err != nil {
		return Frame{}, err
	}
	if buf.Len() > max {
		return Frame{}, fmt.Errorf("%w: more than %d bytes", ErrPacketTooLarge, max)
	}
	return DecodeLimits(buf.Bytes(), limits)
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	b, err := EncodeLimits(f, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
