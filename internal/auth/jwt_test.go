package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	auth := NewJWTAuth("test-secret")

	token, err := auth.GenerateToken("user-42", "device-7", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.Subject)
	require.Equal(t, "device-7", claims.DeviceID)
	require.Equal(t, "molyscan-sync", claims.Issuer)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := NewJWTAuth("secret-a").GenerateToken("user", "device", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTAuth("secret-b").ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token, err := auth.GenerateToken("user", "device", -time.Minute)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_MissingClaims(t *testing.T) {
	auth := NewJWTAuth("test-secret")

	token, err := auth.GenerateToken("", "device", time.Hour)
	require.NoError(t, err)
	_, err = auth.ValidateToken(token)
	require.ErrorContains(t, err, "missing sub")

	token, err = auth.GenerateToken("user", "", time.Hour)
	require.NoError(t, err)
	_, err = auth.ValidateToken(token)
	require.ErrorContains(t, err, "missing did")
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", token)

	_, err = BearerToken("")
	require.ErrorContains(t, err, "authorization header required")

	_, err = BearerToken("Basic dXNlcjpwYXNz")
	require.ErrorContains(t, err, "bearer token required")
}
