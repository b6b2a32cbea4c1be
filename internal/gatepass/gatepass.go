// Package gatepass turns a successful daily-code validation into an
// explicit capability: a signed token carrying the calendar day it unlocks.
// Submitting a check-in requires presenting the pass, which replaces the
// ambient "form unlocked" flag the workflow would otherwise depend on.
package gatepass

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidPass covers malformed, tampered and expired passes.
var ErrInvalidPass = errors.New("invalid gate pass")

// Claims is the pass payload: the unlocked calendar day plus standard
// issuer/expiry claims.
type Claims struct {
	Date string `json:"date"`
	jwt.RegisteredClaims
}

// Signer issues and verifies gate passes with an HS256 secret.
type Signer struct {
	key    []byte
	issuer string
}

// NewSigner creates a signer. The key must match between the validate and
// submit sides; the issuer pins passes to this deployment.
func NewSigner(key, issuer string) *Signer {
	return &Signer{key: []byte(key), issuer: issuer}
}

// Issue signs a pass for the given calendar day, expiring at expires
// (normally the end of that day).
func (s *Signer) Issue(date string, expires time.Time) (string, error) {
	claims := Claims{
		Date: date,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the signature, expiry and issuer, and returns the calendar
// day the pass unlocks.
func (s *Signer) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		return "", ErrInvalidPass
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidPass
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return "", ErrInvalidPass
	}
	if claims.Date == "" {
		return "", ErrInvalidPass
	}
	return claims.Date, nil
}
