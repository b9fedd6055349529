package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/esmwire/internal/testutil/testlog"
)

func TestKeyringTemplateIsValid(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "keyring.toml")
	if err := WriteTemplate(path, "keyring", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadKeyringConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Peers) != 2 || cfg.Peers[0].ID != "esm_testing" {
		t.Fatalf("unexpected peers %+v", cfg.Peers)
	}
	key, err := cfg.Peers[1].KeyBytes()
	if err != nil || len(key) != 32 || key[31] != 0x1f {
		t.Fatalf("unexpected hex key %x %v", key, err)
	}
	if err := WriteTemplate(path, "keyring", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, "keyring", true); err != nil {
		t.Fatalf("expected forced overwrite, got %v", err)
	}
}

func TestParseKeyringConfigRejects(t *testing.T) {
	testlog.Start(t)
	long := strings.Repeat("k", 32)
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "missing id", doc: "[[peers]]\nkey = \"" + long + "\"\n", want: "id is required"},
		{name: "short key", doc: "[[peers]]\nid = \"a\"\nkey = \"short\"\n", want: "need at least"},
		{name: "both keys", doc: "[[peers]]\nid = \"a\"\nkey = \"" + long + "\"\nkey_hex = \"00\"\n", want: "exactly one"},
		{name: "bad hex", doc: "[[peers]]\nid = \"a\"\nkey_hex = \"zz\"\n", want: "key_hex"},
		{name: "duplicate", doc: "[[peers]]\nid = \"a\"\nkey = \"" + long + "\"\n[[peers]]\nid = \"a\"\nkey = \"" + long + "\"\n", want: "duplicates"},
		{name: "bad toml", doc: "[[peers]\n", want: "parse failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseKeyringConfig([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestTemplateKinds(t *testing.T) {
	testlog.Start(t)
	if _, err := Template("ESMCTL"); err != nil {
		t.Fatalf("expected esmctl template, got %v", err)
	}
	if _, err := Template("bogus"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := LoadKeyringConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
