package gatepass

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	s := NewSigner("test-key", "rollcall")

	pass, err := s.Issue("10/5/2024", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, pass)

	date, err := s.Verify(pass)
	require.NoError(t, err)
	assert.Equal(t, "10/5/2024", date)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := NewSigner("test-key", "rollcall")

	pass, err := s.Issue("10/5/2024", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = s.Verify(pass)
	assert.ErrorIs(t, err, ErrInvalidPass)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	issuer := NewSigner("right-key", "rollcall")
	verifier := NewSigner("wrong-key", "rollcall")

	pass, err := issuer.Issue("10/5/2024", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = verifier.Verify(pass)
	assert.ErrorIs(t, err, ErrInvalidPass)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	a := NewSigner("shared-key", "deployment-a")
	b := NewSigner("shared-key", "deployment-b")

	pass, err := a.Issue("10/5/2024", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = b.Verify(pass)
	assert.ErrorIs(t, err, ErrInvalidPass)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := NewSigner("test-key", "rollcall")

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		_, err := s.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidPass, "token %q", tok)
	}
}

func TestVerifyRejectsForeignSigningMethod(t *testing.T) {
	// A token signed with "none" must not pass even with a valid shape.
	claims := Claims{
		Date: "10/5/2024",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "rollcall",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	s := NewSigner("test-key", "rollcall")
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidPass)
}

func TestVerifyRejectsMissingDate(t *testing.T) {
	s := NewSigner("test-key", "rollcall")

	pass, err := s.Issue("", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = s.Verify(pass)
	assert.ErrorIs(t, err, ErrInvalidPass)
}
