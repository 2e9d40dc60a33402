package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-auth-guard"
	"github.com/stretchr/testify/assert"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   auth.Credentials
		wantErr bool
	}{
		{"valid", auth.Credentials{Username: "jane", Password: "secret"}, false},
		{"missing username", auth.Credentials{Password: "secret"}, true},
		{"missing password", auth.Credentials{Username: "jane"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredentialsNormalize(t *testing.T) {
	c := auth.Credentials{Username: "  jane\t", Password: " pass "}.Normalize()
	assert.Equal(t, "jane", c.Username)
	assert.Equal(t, " pass ", c.Password)
}
