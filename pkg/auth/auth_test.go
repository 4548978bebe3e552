package auth

import (
	"testing"
	"time"

	"fundwave/pkg/config"

	"github.com/stretchr/testify/require"
)

func newTestJWT(t *testing.T) *JWT {
	t.Helper()
	cfg := &config.Config{AppName: "fundwave"}
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Session.TTL = time.Hour

	j, err := NewJWT(cfg)
	require.NoError(t, err)
	return j
}

func TestIssueAndAuthenticate(t *testing.T) {
	j := newTestJWT(t)

	token, exp, err := j.Issue(Identity{UserID: "42", Email: "a@b.sl", Name: "Aminata", Role: RoleAdmin})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	id, err := j.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, "42", id.UserID)
	require.Equal(t, "Aminata", id.Name)
	require.True(t, id.IsAdmin())
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	j := newTestJWT(t)
	j.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := j.Issue(Identity{UserID: "42"})
	require.NoError(t, err)

	j.now = time.Now
	_, err = j.Authenticate(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthenticateRejectsForeignSecret(t *testing.T) {
	a := newTestJWT(t)
	token, _, err := a.Issue(Identity{UserID: "42"})
	require.NoError(t, err)

	cfg := &config.Config{AppName: "fundwave"}
	cfg.Session.Secret = "ffffffffffffffffffffffffffffffff"
	b, err := NewJWT(cfg)
	require.NoError(t, err)

	_, err = b.Authenticate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = b.Authenticate("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTRequiresLongSecret(t *testing.T) {
	cfg := &config.Config{}
	cfg.Session.Secret = "short"
	_, err := NewJWT(cfg)
	require.Error(t, err)
}
