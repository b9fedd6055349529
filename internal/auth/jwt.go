package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSecret = errors.New("auth: jwt secret is empty")

// JWTHS256 accepts HS256 tokens signed with Secret. When Issuer is set the
// token must carry it.
type JWTHS256 struct {
	Secret []byte
	Issuer string
}

func (v JWTHS256) Validate(token string) error {
	if len(v.Secret) == 0 {
		return ErrUnauthorized
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	tok, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// SignHS256 issues a token for subject. A zero ttl issues a token that never
// expires.
func SignHS256(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AnyOf accepts a token that any of validators accepts. Nil entries are skipped.
type AnyOf []Validator

func (a AnyOf) Validate(token string) error {
	for _, v := range a {
		if v == nil {
			continue
		}
		if err := v.Validate(token); err == nil {
			return nil
		}
	}
	return ErrUnauthorized
}
