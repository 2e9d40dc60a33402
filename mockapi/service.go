// Package mockapi is a development stand-in for the inventory REST API. It
// serves the login and permissions endpoints the session store talks to,
// backed by YAML user fixtures.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-auth-guard/internal/clock"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultTokenTTL        = time.Hour
	DefaultLoginsPerMinute = 10
	DefaultLoginBurst      = 5
)

// Option configures a Service
type Option func(*Service)

func WithLogger(logger auth.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLoginRate limits login attempts per username. A zero perMinute
// disables throttling.
func WithLoginRate(perMinute, burst int) Option {
	return func(s *Service) {
		s.perMinute = perMinute
		s.burst = burst
	}
}

// WithHashCost sets the bcrypt cost used for plaintext fixture passwords
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

type account struct {
	fixture UserFixture
	hash    string
}

// Service authenticates fixture users and issues HS256 tokens
type Service struct {
	signingKey []byte
	ttl        time.Duration
	clock      clock.Clock
	logger     auth.Logger
	cost       int
	perMinute  int
	burst      int

	accounts map[string]*account
	byID     map[string]*account

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewService loads the fixtures, hashing plaintext passwords. An empty
// signing key generates a random one, tokens then only verify against
// this instance.
func NewService(signingKey string, fixtures Fixtures, opts ...Option) (*Service, error) {
	s := &Service{
		signingKey: []byte(signingKey),
		ttl:        DefaultTokenTTL,
		clock:      clock.Real(),
		logger:     nopLogger{},
		cost:       passwordHashCost(),
		perMinute:  DefaultLoginsPerMinute,
		burst:      DefaultLoginBurst,
		accounts:   map[string]*account{},
		byID:       map[string]*account{},
		limiters:   map[string]*rate.Limiter{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if len(s.signingKey) == 0 {
		s.logger.Warn("mock API signing key not configured, using a random key")
		s.signingKey = []byte(uuid.NewString())
	}

	if err := fixtures.Validate(); err != nil {
		return nil, err
	}

	for i, user := range fixtures.Users {
		hash := user.PasswordHash
		if hash == "" {
			h, err := HashPassword(user.Password, s.cost)
			if err != nil {
				return nil, invalidFixture(err, i, user.Username)
			}
			hash = h
		}

		user.Password = ""
		user.PasswordHash = hash
		user.Permissions = append([]string{}, user.Permissions...)

		acc := &account{fixture: user, hash: hash}
		s.accounts[usernameKey(user.Username)] = acc
		s.byID[user.ID] = acc
	}

	s.logger.Info("mock API loaded %d users", len(s.accounts))

	return s, nil
}

// Login checks the credentials and returns a signed token with the user
func (s *Service) Login(ctx context.Context, username, password string) (string, auth.User, error) {
	if err := ctx.Err(); err != nil {
		return "", auth.User{}, err
	}

	key := usernameKey(username)
	acc, ok := s.accounts[key]

	// unknown usernames share one budget so the limiter set stays bounded
	limiterKey := key
	if !ok {
		limiterKey = unknownAccountKey
	}
	if !s.allow(limiterKey) {
		s.logger.Warn("login throttled for %q", username)
		return "", auth.User{}, ErrTooManyAttempts
	}

	if !ok {
		s.logger.Debug("login for unknown user %q", username)
		return "", auth.User{}, ErrInvalidLogin
	}

	if err := ComparePasswordAndHash(password, acc.hash); err != nil {
		s.logger.Debug("login password mismatch for %q", username)
		return "", auth.User{}, err
	}

	token, err := s.Issue(acc.fixture.User())
	if err != nil {
		return "", auth.User{}, err
	}

	s.logger.Info("user %s logged in", acc.fixture.Username)

	return token, acc.fixture.User(), nil
}

// Issue signs a token for user
func (s *Service) Issue(user auth.User) (string, error) {
	now := s.clock.Now()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: user.Username(),
		UserRole: user.Role(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify parses and validates a token issued by this service
func (s *Service) Verify(tokenString string) (*auth.Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &auth.Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("mock API verify encountered unexpected signing method %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
			WithTextCode(TextCodeInvalidToken).
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*auth.Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Permissions returns the capabilities of the token's user
func (s *Service) Permissions(ctx context.Context, token string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}

	acc, ok := s.byID[claims.Subject()]
	if !ok {
		s.logger.Warn("token subject %q is not a known user", claims.Subject())
		return nil, ErrInvalidToken
	}

	return append([]string{}, acc.fixture.Permissions...), nil
}

// Users returns the loaded fixture users without password material
func (s *Service) Users() []auth.User {
	out := make([]auth.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc.fixture.User())
	}
	return out
}

func (s *Service) allow(key string) bool {
	if s.perMinute <= 0 {
		return true
	}

	s.limitersMu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		burst := s.burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMinute)), burst)
		s.limiters[key] = limiter
	}
	s.limitersMu.Unlock()

	return limiter.AllowN(s.clock.Now(), 1)
}

// unknownAccountKey never matches a fixture, usernames are validated non empty
const unknownAccountKey = ""

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
