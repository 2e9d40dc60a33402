// Package config loads the TOML settings shared by the session store, the
// navigation guard, the CLIs and the mock API.
package config

import (
	"errors"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-auth-guard"
	goerrors "github.com/goliatone/go-errors"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"

	EnvBackendURL = "AUTH_GUARD_BACKEND_URL"
	EnvStorageDSN = "AUTH_GUARD_STORAGE_DSN"
	EnvSigningKey = "AUTH_GUARD_SIGNING_KEY"
)

var routePattern = regexp.MustCompile(`^/[^\s?#]*$`)

var _ auth.Config = (*Settings)(nil)

// Settings is the root configuration document
type Settings struct {
	Session    Session    `toml:"session"`
	Navigation Navigation `toml:"navigation"`
	Backend    Backend    `toml:"backend"`
	Storage    Storage    `toml:"storage"`
	MockAPI    MockAPI    `toml:"mockapi"`
}

type Session struct {
	StorageKey               string   `toml:"storage_key"`
	RequestTimeoutExpression string   `toml:"request_timeout"`
	ElevatedRoles            []string `toml:"elevated_roles"`
}

type Navigation struct {
	LoginRoute    string `toml:"login_route"`
	FallbackRoute string `toml:"fallback_route"`
	RedirectParam string `toml:"redirect_param"`
}

type Backend struct {
	BaseURL string `toml:"base_url"`
}

type Storage struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type MockAPI struct {
	Addr               string `toml:"addr"`
	Fixtures           string `toml:"fixtures"`
	SigningKey         string `toml:"signing_key"`
	TokenTTLExpression string `toml:"token_ttl"`
	LoginsPerMinute    int    `toml:"logins_per_minute"`
	LoginBurst         int    `toml:"login_burst"`
}

// Defaults returns settings with every value filled in
func Defaults() *Settings {
	return &Settings{
		Session: Session{
			StorageKey:               auth.DefaultStorageKey,
			RequestTimeoutExpression: auth.DefaultRequestTimeout.String(),
			ElevatedRoles:            []string{auth.RoleAdmin},
		},
		Navigation: Navigation{
			LoginRoute:    auth.DefaultLoginRoute,
			FallbackRoute: auth.DefaultFallbackRoute,
			RedirectParam: auth.DefaultRedirectParam,
		},
		Backend: Backend{
			BaseURL: "http://127.0.0.1:5000/api",
		},
		Storage: Storage{
			Driver: StorageMemory,
		},
		MockAPI: MockAPI{
			Addr:               ":5000",
			TokenTTLExpression: "1h",
			LoginsPerMinute:    10,
			LoginBurst:         5,
		},
	}
}

// Load reads path over the defaults, applies env overrides and validates.
// An empty path returns the validated defaults.
func Load(path string) (*Settings, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode TOML config").
				WithMetadata(map[string]any{"path": path})
		}
	}

	return finalize(cfg)
}

// Parse decodes a TOML document over the defaults
func Parse(data string) (*Settings, error) {
	cfg := Defaults()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode TOML config")
	}
	return finalize(cfg)
}

func finalize(cfg *Settings) (*Settings, error) {
	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides replaces values set in the environment
func (s *Settings) ApplyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		s.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		s.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSigningKey)); v != "" {
		s.MockAPI.SigningKey = v
	}
}

func (s *Settings) fillDefaults() {
	def := Defaults()
	if s.Session.StorageKey == "" {
		s.Session.StorageKey = def.Session.StorageKey
	}
	if s.Session.RequestTimeoutExpression == "" {
		s.Session.RequestTimeoutExpression = def.Session.RequestTimeoutExpression
	}
	if len(s.Session.ElevatedRoles) == 0 {
		s.Session.ElevatedRoles = def.Session.ElevatedRoles
	}
	if s.Navigation.LoginRoute == "" {
		s.Navigation.LoginRoute = def.Navigation.LoginRoute
	}
	if s.Navigation.FallbackRoute == "" {
		s.Navigation.FallbackRoute = def.Navigation.FallbackRoute
	}
	if s.Navigation.RedirectParam == "" {
		s.Navigation.RedirectParam = def.Navigation.RedirectParam
	}
	if s.Storage.Driver == "" {
		s.Storage.Driver = def.Storage.Driver
	}
	if s.MockAPI.TokenTTLExpression == "" {
		s.MockAPI.TokenTTLExpression = def.MockAPI.TokenTTLExpression
	}
}

// Validate will validate every section
func (s *Settings) Validate() error {
	err := validation.Errors{
		"session":    s.Session.Validate(),
		"navigation": s.Navigation.Validate(),
		"backend":    s.Backend.Validate(),
		"storage":    s.Storage.Validate(),
		"mockapi":    s.MockAPI.Validate(),
	}.Filter()
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
		WithMetadata(map[string]any{"errors": err.Error()})
}

func (s Session) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.StorageKey, validation.Required),
		validation.Field(&s.RequestTimeoutExpression, validation.Required, validation.By(positiveDuration)),
	)
}

func (n Navigation) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.LoginRoute, validation.Required, validation.Match(routePattern)),
		validation.Field(&n.FallbackRoute, validation.Required, validation.Match(routePattern)),
		validation.Field(&n.RedirectParam, validation.Required, validation.Match(regexp.MustCompile(`^[A-Za-z0-9_\-]+$`))),
	)
}

func (b Backend) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.BaseURL, validation.Required, validation.Match(regexp.MustCompile(`^https?://`))),
	)
}

func (s Storage) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required, validation.In(StorageMemory, StorageSQLite)),
	)
}

func (m MockAPI) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.TokenTTLExpression, validation.Required, validation.By(positiveDuration)),
		validation.Field(&m.LoginsPerMinute, validation.Min(0)),
		validation.Field(&m.LoginBurst, validation.Min(0)),
	)
}

func positiveDuration(value any) error {
	s, _ := value.(string)
	d, err := time.ParseDuration(s)
	if err != nil {
		return errors.New("must be a duration such as 30s")
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func (s *Settings) GetLoginRoute() string      { return s.Navigation.LoginRoute }
func (s *Settings) GetFallbackRoute() string   { return s.Navigation.FallbackRoute }
func (s *Settings) GetRedirectParam() string   { return s.Navigation.RedirectParam }
func (s *Settings) GetStorageKey() string      { return s.Session.StorageKey }
func (s *Settings) GetElevatedRoles() []string { return s.Session.ElevatedRoles }

func (s *Settings) GetRequestTimeout() time.Duration {
	return mustDuration(s.Session.RequestTimeoutExpression, auth.DefaultRequestTimeout)
}

// GetTokenTTL is the lifetime of tokens issued by the mock API
func (m MockAPI) GetTokenTTL() time.Duration {
	return mustDuration(m.TokenTTLExpression, time.Hour)
}

func mustDuration(expr string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(expr)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
