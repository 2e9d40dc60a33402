package auth_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-guard"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segment(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func TestDecodeTokenSignedToken(t *testing.T) {
	token := signToken(t, "42", "jane", auth.RoleStaff)

	claims, err := auth.DecodeToken(token)
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject())
	assert.Equal(t, "jane", claims.Username)
	assert.Equal(t, auth.RoleStaff, claims.Role())
	assert.False(t, claims.Expires().IsZero())
	assert.Equal(t, &auth.User{UserID: "42", Name: "jane", UserRole: auth.RoleStaff}, claims.User())
}

func TestDecodeTokenIgnoresSignatureAndExpiry(t *testing.T) {
	payload := segment(`{"sub":"1","username":"root","role":"admin","exp":1,"extra":{"a":1}}`)
	token := "header." + payload + ".not-a-signature"

	claims, err := auth.DecodeToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsExpired(time.Now()))
	assert.Equal(t, auth.RoleAdmin, claims.Role())
}

func TestDecodeTokenToleratesPadding(t *testing.T) {
	tests := []struct {
		role    string
		padding string
	}{
		{"staffx", "=="},
		{"staffxy", "="},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			payload := `{"sub":"1","username":"jo","role":"` + tt.role + `"}`
			padded := base64.URLEncoding.EncodeToString([]byte(payload))
			require.True(t, strings.HasSuffix(padded, tt.padding))
			require.False(t, strings.HasSuffix(padded, tt.padding+"="))

			claims, err := auth.DecodeToken("h." + padded + ".s")
			require.NoError(t, err)
			assert.Equal(t, "jo", claims.Username)
			assert.Equal(t, tt.role, claims.Role())
		})
	}
}

func TestDecodeTokenNumericSubject(t *testing.T) {
	claims, err := auth.DecodeToken("h." + segment(`{"sub":42,"username":"jane","role":"staff","exp":1700000000}`) + ".s")
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject())
	assert.Equal(t, "42", claims.User().ID())
	assert.True(t, claims.Expires().Equal(time.Unix(1700000000, 0)))
}

func TestDecodeTokenFailures(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		textCode string
		key      string
		value    any
	}{
		{"empty", "", auth.TextCodeTokenMalformed, "reason", "segments"},
		{"missing delimiter", "abc", auth.TextCodeTokenMalformed, "reason", "segments"},
		{"too many segments", "a.b.c.d", auth.TextCodeTokenMalformed, "reason", "segments"},
		{"invalid encoding", "a.!!!.c", auth.TextCodeTokenMalformed, "reason", "encoding"},
		{"empty claims", "a..c", auth.TextCodeTokenMalformed, "reason", "encoding"},
		{"invalid json", "a." + segment(`{"sub":`) + ".c", auth.TextCodeTokenMalformed, "reason", "payload"},
		{"array payload", "a." + segment(`[1,2]`) + ".c", auth.TextCodeTokenMalformed, "reason", "payload"},
		{"string payload", "a." + segment(`"x"`) + ".c", auth.TextCodeTokenMalformed, "reason", "payload"},
		{"null payload", "a." + segment(`null`) + ".c", auth.TextCodeTokenMalformed, "reason", "payload"},
		{"wrong claim type", "a." + segment(`{"sub":true,"username":"a","role":"b"}`) + ".c", auth.TextCodeTokenMalformed, "reason", "payload"},
		{"blank sub", "a." + segment(`{"sub":"  ","username":"a","role":"b"}`) + ".c", auth.TextCodeTokenClaimMissing, "claim", "sub"},
		{"missing sub", "a." + segment(`{"username":"a","role":"b"}`) + ".c", auth.TextCodeTokenClaimMissing, "claim", "sub"},
		{"missing username", "a." + segment(`{"sub":"1","role":"b"}`) + ".c", auth.TextCodeTokenClaimMissing, "claim", "username"},
		{"missing role", "a." + segment(`{"sub":"1","username":"a"}`) + ".c", auth.TextCodeTokenClaimMissing, "claim", "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims *auth.Claims
			var err error
			assert.NotPanics(t, func() {
				claims, err = auth.DecodeToken(tt.token)
			})

			require.Error(t, err)
			assert.Nil(t, claims)
			assert.True(t, auth.IsDecodeFailure(err))

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, tt.textCode, richErr.TextCode)
			assert.Equal(t, tt.value, richErr.Metadata[tt.key])
		})
	}
}

func TestClaimsExpires(t *testing.T) {
	claims := &auth.Claims{}
	assert.True(t, claims.Expires().IsZero())
	assert.False(t, claims.IsExpired(time.Now()))

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	assert.True(t, claims.Expires().Equal(exp))
	assert.False(t, claims.IsExpired(time.Now()))
	assert.True(t, claims.IsExpired(exp.Add(time.Minute)))
}
