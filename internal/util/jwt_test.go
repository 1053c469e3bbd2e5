package util

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contracttracker/internal/model"
)

func TestJWTRoundTrip(t *testing.T) {
	actor := model.Actor{ID: "u-1", Name: "Ada", Role: "supplier_pm"}
	token, err := GenerateJWT(actor, "secret", time.Hour)
	require.NoError(t, err)

	got, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT(model.Actor{ID: "u-1", Role: "viewer"}, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	token, err := GenerateJWT(model.Actor{ID: "u-1", Role: "viewer"}, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseJWTNumericUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 42,
		"role":    "admin",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "admin", got.Role)
}

func TestParseJWTMissingUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
}

func TestExtractToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", ExtractToken(r))
}
