package auth

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/costbook/internal/clock"
	"github.com/smallbiznis/costbook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(clk clock.Clock) *Verifier {
	return NewVerifier(config.Config{AuthJWTSecret: "test-secret", AuthJWTIssuer: "costbook"}, clk)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	v := newTestVerifier(clock.NewFakeClock(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)))

	token, err := v.IssueToken(snowflake.ID(42), time.Hour)
	require.NoError(t, err)

	principal, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), principal)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	v := newTestVerifier(clk)

	token, err := v.IssueToken(snowflake.ID(42), time.Hour)
	require.NoError(t, err)

	clk.AdvanceDays(1)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	other := NewVerifier(config.Config{AuthJWTSecret: "other", AuthJWTIssuer: "costbook"}, clk)
	token, err := other.IssueToken(snowflake.ID(7), time.Hour)
	require.NoError(t, err)

	_, err = newTestVerifier(clk).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	other := NewVerifier(config.Config{AuthJWTSecret: "test-secret", AuthJWTIssuer: "elsewhere"}, clk)
	token, err := other.IssueToken(snowflake.ID(7), time.Hour)
	require.NoError(t, err)

	_, err = newTestVerifier(clk).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNonNumericSubject(t *testing.T) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "costbook",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newTestVerifier(clock.NewFakeClock(now)).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestVerifyWithoutSecret(t *testing.T) {
	v := NewVerifier(config.Config{}, clock.New())
	_, err := v.Verify("anything")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	token, err = BearerToken("bearer  xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
