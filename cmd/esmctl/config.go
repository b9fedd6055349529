package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/esmwire/internal/auth"
	"github.com/danmuck/esmwire/internal/protocol/schema"
)

type fileConfig struct {
	Addr        string   `toml:"addr"`
	Keyring     string   `toml:"keyring"`
	Format      string   `toml:"format"`
	CORSOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
	JWTSecret   string   `toml:"jwt_secret"`
	JWTIssuer   string   `toml:"jwt_issuer"`
	RateLimit   float64  `toml:"rate_limit"`
	RateBurst   int      `toml:"rate_burst"`
}

type toolConfig struct {
	Addr        string
	Keyring     string
	Format      schema.Format
	CORSOrigins []string
	AuthToken   string
	JWTSecret   string
	JWTIssuer   string
	RateLimit   float64
	RateBurst   int
}

func defaultToolConfig() toolConfig {
	return toolConfig{
		Addr:      "127.0.0.1:3003",
		Keyring:   "keyring.toml",
		Format:    schema.FormatPairs,
		JWTIssuer: "esmctl",
	}
}

func loadToolConfig(path string) (toolConfig, error) {
	cfg := defaultToolConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return toolConfig{}, fmt.Errorf("load esmctl config: %w", err)
	}

	if meta.IsDefined("addr") {
		if addr := strings.TrimSpace(raw.Addr); addr != "" {
			cfg.Addr = addr
		}
	}
	if meta.IsDefined("keyring") {
		cfg.Keyring = strings.TrimSpace(raw.Keyring)
	}
	if meta.IsDefined("format") {
		f, err := schema.ParseFormat(raw.Format)
		if err != nil {
			return toolConfig{}, fmt.Errorf("parse format: %w", err)
		}
		cfg.Format = f
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("jwt_secret") {
		cfg.JWTSecret = strings.TrimSpace(raw.JWTSecret)
	}
	if meta.IsDefined("jwt_issuer") {
		cfg.JWTIssuer = strings.TrimSpace(raw.JWTIssuer)
	}
	if meta.IsDefined("rate_limit") {
		if raw.RateLimit < 0 {
			return toolConfig{}, fmt.Errorf("rate_limit must be >= 0, got %v", raw.RateLimit)
		}
		cfg.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		cfg.RateBurst = raw.RateBurst
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return toolConfig{}, fmt.Errorf("load esmctl config: unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}

// validator builds the inspection API guard. Nil means no token is configured.
func (c toolConfig) validator() auth.Validator {
	var guards auth.AnyOf
	if c.AuthToken != "" {
		guards = append(guards, auth.StaticToken{Token: c.AuthToken})
	}
	if c.JWTSecret != "" {
		guards = append(guards, auth.JWTHS256{Secret: []byte(c.JWTSecret), Issuer: c.JWTIssuer})
	}
	if len(guards) == 0 {
		return nil
	}
	return guards
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
