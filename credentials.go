package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Credentials is the login form payload sent to the backend
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required, validation.Length(1, 150)),
		validation.Field(&c.Password, validation.Required, validation.Length(1, 200)),
	)
}

// Normalize trims the username, passwords are sent untouched
func (c Credentials) Normalize() Credentials {
	c.Username = strings.TrimSpace(c.Username)
	return c
}

func validateCredentials(c Credentials) error {
	err := c.Validate()
	if err == nil {
		return nil
	}

	fields := map[string]any{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	} else {
		fields["form"] = err.Error()
	}

	clone := ErrInvalidCredentials.Clone()
	if clone == nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, ErrInvalidCredentials.Message)
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{"fields": fields})
}
