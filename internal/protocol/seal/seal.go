// Package seal is the AES-256-GCM layer of the packet envelope.
//
// Keys are resolved per peer through an injected KeyLookup. A stored key may
// be longer than KeySize; only its first KeySize bytes are used.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	KeySize   = 32
	NonceSize = 12
)

var (
	ErrUnknownPeer = errors.New("seal: no key for peer")
	ErrKeyTooShort = errors.New("seal: key shorter than 32 bytes")
	// ErrDecrypt covers every authentication failure. Tampering and a wrong
	// key are not distinguished.
	ErrDecrypt = errors.New("seal: message authentication failed")
)

// KeyLookup resolves the key bytes registered for a peer id.
type KeyLookup interface {
	LookupKey(peerID []byte) ([]byte, bool)
}

// KeyFunc adapts a function to KeyLookup.
type KeyFunc func(peerID []byte) ([]byte, bool)

func (f KeyFunc) LookupKey(peerID []byte) ([]byte, bool) { return f(peerID) }

// Resolve returns a copy of the first KeySize bytes of the key stored for peerID.
func Resolve(keys KeyLookup, peerID []byte) ([]byte, error) {
	if keys == nil {
		return nil, fmt.Errorf("%w: no key lookup configured", ErrUnknownPeer)
	}
	key, ok := keys.LookupKey(peerID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeer, peerID)
	}
	if len(key) < KeySize {
		return nil, fmt.Errorf("%w: peer %q has %d bytes", ErrKeyTooShort, peerID, len(key))
	}
	out := make([]byte, KeySize)
	copy(out, key[:KeySize])
	return out, nil
}

// Seal encrypts plaintext under key with a fresh random nonce.
func Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("seal: read nonce: %w", err)
	}
	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts ciphertext. A nonce of the wrong size is an
// authentication failure.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrDecrypt
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) < KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrKeyTooShort, len(key))
	}
	block, err := aes.NewCipher(key[:KeySize])
	if err != nil {
		return nil, fmt.Errorf("seal: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: gcm: %w", err)
	}
	return aead, nil
}
