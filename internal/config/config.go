// Package config loads the peer keyring file.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// MinKeyBytes is the shortest usable peer key. Longer keys are accepted and
// truncated when sealing.
const MinKeyBytes = 32

// KeyringConfig lists the peers a process may exchange packets with.
type KeyringConfig struct {
	Peers []PeerConfig `toml:"peers"`
}

// PeerConfig is one peer. Exactly one of Key (raw text) or KeyHex is set.
type PeerConfig struct {
	ID     string `toml:"id"`
	Key    string `toml:"key"`
	KeyHex string `toml:"key_hex"`
}

// KeyBytes returns the decoded key material.
func (p PeerConfig) KeyBytes() ([]byte, error) {
	if strings.TrimSpace(p.KeyHex) != "" {
		b, err := hex.DecodeString(strings.TrimSpace(p.KeyHex))
		if err != nil {
			return nil, fmt.Errorf("key_hex: %w", err)
		}
		return b, nil
	}
	return []byte(p.Key), nil
}

func LoadKeyringConfig(path string) (KeyringConfig, error) {
	var cfg KeyringConfig
	if err := loadToml(path, &cfg); err != nil {
		return KeyringConfig{}, err
	}
	if err := ValidateKeyringConfig(cfg); err != nil {
		return KeyringConfig{}, fmt.Errorf("keyring config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// ParseKeyringConfig reads and validates keyring TOML from memory.
func ParseKeyringConfig(data []byte) (KeyringConfig, error) {
	var cfg KeyringConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return KeyringConfig{}, fmt.Errorf("config parse failed: %w", err)
	}
	if err := ValidateKeyringConfig(cfg); err != nil {
		return KeyringConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateKeyringConfig(cfg KeyringConfig) error {
	seen := make(map[string]int, len(cfg.Peers))
	for i, peer := range cfg.Peers {
		if err := ValidatePeerEntry(peer); err != nil {
			return fmt.Errorf("peers[%d] invalid: %w", i, err)
		}
		if prev, dup := seen[peer.ID]; dup {
			return fmt.Errorf("peers[%d] duplicates peers[%d] id %q", i, prev, peer.ID)
		}
		seen[peer.ID] = i
	}
	return nil
}

func ValidatePeerEntry(peer PeerConfig) error {
	if strings.TrimSpace(peer.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if len(peer.ID) > 255 {
		return fmt.Errorf("id longer than 255 bytes")
	}
	hasKey := peer.Key != ""
	hasHex := strings.TrimSpace(peer.KeyHex) != ""
	if hasKey == hasHex {
		return fmt.Errorf("exactly one of key or key_hex is required")
	}
	key, err := peer.KeyBytes()
	if err != nil {
		return err
	}
	if len(key) < MinKeyBytes {
		return fmt.Errorf("key has %d bytes, need at least %d", len(key), MinKeyBytes)
	}
	return nil
}
