package mockapi

import (
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer a.b.c", "a.b.c", true},
		{"bearer   a.b.c ", "a.b.c", true},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := bearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestFieldErrors(t *testing.T) {
	err := validation.Errors{
		"username": errors.New("cannot be blank"),
		"password": nil,
	}
	assert.Equal(t, map[string]string{"username": "cannot be blank"}, fieldErrors(err))
	assert.Equal(t, map[string]string{"form": "boom"}, fieldErrors(errors.New("boom")))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusOf(ErrInvalidLogin))
	assert.Equal(t, http.StatusTooManyRequests, statusOf(ErrTooManyAttempts))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
	assert.Equal(t, "Invalid username or password", publicMessage(ErrInvalidLogin))
}
