package protocol

import (
	"bytes"
	"fmt"

	"github.com/danmuck/esmwire/internal/protocol/frame"
	"github.com/danmuck/esmwire/internal/protocol/seal"
)

// Encrypt serializes m and seals it for m.PeerID under the key keys returns
// for that peer. Every call uses a fresh nonce.
func Encrypt(m *Message, keys seal.KeyLookup) ([]byte, error) {
	if m == nil || len(m.PeerID) == 0 {
		return nil, ErrMissingPeerID
	}
	if len(m.PeerID) > frame.MaxFieldLen {
		return nil, fmt.Errorf("%w: %d", frame.ErrPeerIDTooLong, len(m.PeerID))
	}
	key, err := seal.Resolve(keys, m.PeerID)
	if err != nil {
		return nil, err
	}
	body, err := m.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("protocol: encode body: %w", err)
	}
	nonce, ciphertext, err := seal.Seal(key, body)
	if err != nil {
		return nil, err
	}
	return frame.Encode(frame.Frame{PeerID: m.PeerID, Nonce: nonce, Ciphertext: ciphertext})
}

// Decrypt opens packet with the key registered for its peer id and decodes
// the message. The returned message carries the packet's peer id.
func Decrypt(packet []byte, keys seal.KeyLookup) (*Message, error) {
	f, err := frame.Decode(packet)
	if err != nil {
		return nil, err
	}
	key, err := seal.Resolve(keys, f.PeerID)
	if err != nil {
		return nil, err
	}
	body, err := seal.Open(key, f.Nonce, f.Ciphertext)
	if err != nil {
		return nil, err
	}
	var m Message
	if err := m.UnmarshalJSON(body); err != nil {
		return nil, err
	}
	if len(m.PeerID) > 0 && !bytes.Equal(m.PeerID, f.PeerID) {
		return nil, fmt.Errorf("%w: body=%q packet=%q", ErrPeerMismatch, m.PeerID, f.PeerID)
	}
	m.PeerID = append([]byte(nil), f.PeerID...)
	return &m, nil
}
