package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-0123456789"

func TestGenerateVerify(t *testing.T) {
	req := require.New(t)
	m := NewJWTManager(secret, time.Hour)

	token, err := m.Generate("res-1", "Alice", "resident")
	req.NoError(err)

	claims, err := m.Verify(token)
	req.NoError(err)
	req.Equal("res-1", claims.Subject)
	req.Equal("Alice", claims.Name)
	req.Equal("resident", claims.Role)

	exp, err := m.Expiry(token)
	req.NoError(err)
	req.WithinDuration(time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestVerify_Rejects(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)

	expired, err := NewJWTManager(secret, -time.Minute).Generate("res-1", "Alice", "resident")
	require.NoError(t, err)
	foreign, err := NewJWTManager("another-secret-0123456789", time.Hour).Generate("res-1", "Alice", "resident")
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "adm-1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"foreign":    foreign,
		"no subject": noSubject,
		"alg none":   none,
		"garbage":    "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, err := ExtractTokenFromHeader(r)
	require.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "bearer abc")
	token, err := ExtractTokenFromHeader(r)
	require.NoError(t, err)
	require.Equal(t, "abc", token)

	r.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromHeader(r)
	require.ErrorIs(t, err, ErrMissingToken)
}
