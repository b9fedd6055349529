// Package payloadtest holds payload fixtures and fail-fast variant accessors
// for tests.
package payloadtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/seal"
)

// PeerID is the peer used by fixtures.
var PeerID = []byte("esm_testing")

// Must returns u as variant T and fails the test on a mismatch.
func Must[T, U any](tb testing.TB, u U) T {
	tb.Helper()
	t, err := schema.As[T](u)
	if err != nil {
		tb.Fatalf("payloadtest: %v", err)
	}
	return t
}

// Key returns a deterministic key of n bytes.
func Key(fill byte, n int) []byte {
	return bytes.Repeat([]byte{fill}, n)
}

// Keys returns a lookup holding key for PeerID only.
func Keys(key []byte) seal.KeyFunc {
	return func(peerID []byte) ([]byte, bool) {
		if bytes.Equal(peerID, PeerID) {
			return key, true
		}
		return nil, false
	}
}

// Init returns the bootstrap payload used across tests.
func Init() data.Init {
	return data.Init{
		ExtensionVersion:  "2.0.0",
		PricePerObject:    "10",
		ServerName:        "server_name",
		ServerStartTime:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		TerritoryData:     "[]",
		TerritoryLifetime: "7",
		VGMaxSizes:        "",
	}
}

// Command returns a command payload with a target.
func Command() metadata.Command {
	mention := "<@123456789012345678>"
	return metadata.Command{
		Player: metadata.Player{DiscordMention: &mention, SteamUID: "76561198000000001"},
		Target: &metadata.Player{SteamUID: "76561198000000002"},
	}
}
