package mockapi

import (
	"bytes"
	"errors"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-auth-guard"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// UserFixture is a user the mock API accepts. Either Password or
// PasswordHash must be set, plaintext passwords are hashed at load.
type UserFixture struct {
	ID           string   `yaml:"id"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password,omitempty"`
	PasswordHash string   `yaml:"password_hash,omitempty"`
	Role         string   `yaml:"role"`
	Permissions  []string `yaml:"permissions"`
}

// Validate will validate the fixture
func (u UserFixture) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ID, validation.Required),
		validation.Field(&u.Username, validation.Required, validation.Length(1, 150)),
		validation.Field(&u.Role, validation.Required),
		validation.Field(&u.Password, validation.By(u.hasSecret)),
	)
}

func (u UserFixture) hasSecret(any) error {
	if u.Password == "" && u.PasswordHash == "" {
		return errors.New("password or password_hash is required")
	}
	return nil
}

// User returns the identity the login endpoint answers with
func (u UserFixture) User() auth.User {
	return auth.User{UserID: u.ID, Name: u.Username, UserRole: u.Role}
}

// Fixtures is the YAML document loaded by the mock API
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
}

// DefaultFixtures is used when no fixture file is configured
func DefaultFixtures() Fixtures {
	return Fixtures{
		Users: []UserFixture{
			{
				ID:       "1",
				Username: "admin",
				Password: "admin",
				Role:     auth.RoleAdmin,
			},
			{
				ID:       "2",
				Username: "staff",
				Password: "staff",
				Role:     auth.RoleStaff,
				Permissions: []string{
					"view_inventory",
					"view_categories",
				},
			},
			{
				ID:          "3",
				Username:    "viewer",
				Password:    "viewer",
				Role:        auth.RoleStaff,
				Permissions: []string{},
			},
		},
	}
}

// LoadFixtures reads a YAML fixture file
func LoadFixtures(path string) (Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, goerrors.Wrap(err, goerrors.CategoryNotFound, "failed to read fixtures").
			WithMetadata(map[string]any{"path": path})
	}

	fixtures, err := ParseFixtures(raw)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return Fixtures{}, richErr.WithMetadata(map[string]any{"path": path})
		}
		return Fixtures{}, err
	}
	return fixtures, nil
}

// ParseFixtures decodes a YAML fixture document, unknown keys are rejected
func ParseFixtures(raw []byte) (Fixtures, error) {
	var fixtures Fixtures

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fixtures); err != nil {
		return Fixtures{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode fixtures")
	}

	if err := fixtures.Validate(); err != nil {
		return Fixtures{}, err
	}
	return fixtures, nil
}

// Validate checks every user and rejects duplicate usernames
func (f Fixtures) Validate() error {
	seen := map[string]struct{}{}
	for i, user := range f.Users {
		if err := user.Validate(); err != nil {
			return invalidFixture(err, i, user.Username)
		}

		key := strings.ToLower(strings.TrimSpace(user.Username))
		if _, ok := seen[key]; ok {
			return invalidFixture(nil, i, user.Username).
				WithMetadata(map[string]any{"reason": "duplicate"})
		}
		seen[key] = struct{}{}
	}
	return nil
}

func invalidFixture(err error, index int, username string) *goerrors.Error {
	clone := ErrInvalidFixture.Clone()
	if clone == nil {
		clone = goerrors.New(ErrInvalidFixture.Message, ErrInvalidFixture.Category).
			WithTextCode(TextCodeInvalidFixture)
	}
	clone.Source = err
	meta := map[string]any{
		"index":    index,
		"username": username,
	}
	if err != nil {
		meta["errors"] = err.Error()
	}
	return clone.WithMetadata(meta)
}
