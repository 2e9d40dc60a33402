package mockapi_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-auth-guard/mockapi"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
users:
  - id: "1"
    username: admin
    password: admin
    role: admin
  - id: "2"
    username: clerk
    password_hash: "$2a$04$abcdefghijklmnopqrstuu5r3f5PxvFqGz5n0hTnC2bS0mYkqH1Xm"
    role: staff
    permissions:
      - view_inventory
`

func TestParseFixtures(t *testing.T) {
	fixtures, err := mockapi.ParseFixtures([]byte(fixtureYAML))
	require.NoError(t, err)
	require.Len(t, fixtures.Users, 2)

	assert.Equal(t, "admin", fixtures.Users[0].Password)
	assert.Equal(t, "clerk", fixtures.Users[1].Username)
	assert.Equal(t, []string{"view_inventory"}, fixtures.Users[1].Permissions)
	clerk := fixtures.Users[1].User()
	assert.Equal(t, "2", clerk.ID())
}

func TestParseFixturesRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{
			name: "unknown key",
			doc:  "users:\n  - id: \"1\"\n    username: a\n    password: a\n    role: staff\n    email: a@b.c\n",
		},
		{
			name: "missing secret",
			doc:  "users:\n  - id: \"1\"\n    username: a\n    role: staff\n",
			code: mockapi.TextCodeInvalidFixture,
		},
		{
			name: "missing role",
			doc:  "users:\n  - id: \"1\"\n    username: a\n    password: a\n",
			code: mockapi.TextCodeInvalidFixture,
		},
		{
			name: "duplicate username",
			doc:  "users:\n  - {id: \"1\", username: a, password: a, role: staff}\n  - {id: \"2\", username: A, password: b, role: staff}\n",
			code: mockapi.TextCodeInvalidFixture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mockapi.ParseFixtures([]byte(tt.doc))
			require.Error(t, err)
			if tt.code != "" {
				assert.Equal(t, tt.code, textCode(err))
			}
		})
	}
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	fixtures, err := mockapi.LoadFixtures(path)
	require.NoError(t, err)
	assert.Len(t, fixtures.Users, 2)

	_, err = mockapi.LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryNotFound, richErr.Category)
}

func TestDefaultFixturesAreValid(t *testing.T) {
	assert.NoError(t, mockapi.DefaultFixtures().Validate())
}
