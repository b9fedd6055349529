package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "keyring":
		return keyringTemplate, nil
	case "esmctl":
		return esmctlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const keyringTemplate = `# Keys shorter than 32 bytes are rejected; only the first 32 bytes are used.

[[peers]]
id = "esm_testing"
key = "replace-me-with-a-key-of-at-least-32-bytes"

[[peers]]
id = "esm_malden"
key_hex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
`

const esmctlTemplate = `addr = "127.0.0.1:3003"
keyring = "keyring.toml"
format = "pairs"
cors_origins = ["http://localhost:3000"]
auth_token = ""
jwt_secret = ""
jwt_issuer = "esmctl"
rate_limit = 0.0
rate_burst = 0
`
