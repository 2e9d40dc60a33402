package mockapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginLimitersOnlyTrackKnownAccounts(t *testing.T) {
	svc, err := NewService("key", DefaultFixtures(), WithHashCost(bcrypt.MinCost), WithLoginRate(60, 1000))
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"ghost", "nobody", "someone-else", "  GHOST  ", ""} {
		_, _, err := svc.Login(ctx, name, "secret")
		assert.ErrorIs(t, err, ErrInvalidLogin)
	}

	_, _, err = svc.Login(ctx, "Staff", "wrong")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	svc.limitersMu.Lock()
	defer svc.limitersMu.Unlock()
	assert.Len(t, svc.limiters, 2)
	assert.Contains(t, svc.limiters, "staff")
	assert.Contains(t, svc.limiters, unknownAccountKey)
}

func TestLoginUnknownAccountsShareABudget(t *testing.T) {
	svc, err := NewService("key", DefaultFixtures(), WithHashCost(bcrypt.MinCost), WithLoginRate(1, 2))
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = svc.Login(ctx, "ghost-1", "x")
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, _, err = svc.Login(ctx, "ghost-2", "x")
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, _, err = svc.Login(ctx, "ghost-3", "x")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, _, err = svc.Login(ctx, "staff", "staff")
	assert.NoError(t, err, "known accounts keep their own budget")
}
