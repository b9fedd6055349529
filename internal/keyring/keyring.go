// Package keyring is an in-memory, concurrency-safe peer key store.
package keyring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/esmwire/internal/config"
	"github.com/danmuck/esmwire/internal/protocol/frame"
	"github.com/danmuck/esmwire/internal/protocol/seal"
)

// Keyring maps peer ids to key material. It satisfies seal.KeyLookup and
// copies keys on the way in and out.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

var _ seal.KeyLookup = (*Keyring)(nil)

func New() *Keyring {
	return &Keyring{keys: make(map[string][]byte)}
}

// FromConfig builds a keyring from a validated keyring file.
func FromConfig(cfg config.KeyringConfig) (*Keyring, error) {
	k := New()
	for i, peer := range cfg.Peers {
		key, err := peer.KeyBytes()
		if err != nil {
			return nil, fmt.Errorf("peers[%d]: %w", i, err)
		}
		if err := k.Put([]byte(peer.ID), key); err != nil {
			return nil, fmt.Errorf("peers[%d]: %w", i, err)
		}
	}
	return k, nil
}

// Put stores key for peerID, replacing any previous key.
func (k *Keyring) Put(peerID, key []byte) error {
	if len(peerID) == 0 {
		return frame.ErrEmptyPeerID
	}
	if len(peerID) > frame.MaxFieldLen {
		return frame.ErrPeerIDTooLong
	}
	if len(key) < seal.KeySize {
		return fmt.Errorf("%w: peer %q has %d bytes", seal.ErrKeyTooShort, peerID, len(key))
	}
	k.mu.Lock()
	k.keys[string(peerID)] = append([]byte(nil), key...)
	k.mu.Unlock()
	return nil
}

// Remove deletes peerID and reports whether it was present.
func (k *Keyring) Remove(peerID []byte) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[string(peerID)]; !ok {
		return false
	}
	delete(k.keys, string(peerID))
	return true
}

func (k *Keyring) LookupKey(peerID []byte) ([]byte, bool) {
	k.mu.RLock()
	key, ok := k.keys[string(peerID)]
	k.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return append([]byte(nil), key...), true
}

func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// Peers returns the registered peer ids in sorted order.
func (k *Keyring) Peers() []string {
	k.mu.RLock()
	out := make([]string, 0, len(k.keys))
	for id := range k.keys {
		out = append(out, id)
	}
	k.mu.RUnlock()
	sort.Strings(out)
	return out
}
