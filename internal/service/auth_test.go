package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

var testMeta = SessionMeta{IPAddress: "10.0.0.1", UserAgent: "go-test"}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.Register(ctx, " alice ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	last := f.pub.last()
	assert.Equal(t, events.TopicUsers, last.Topic)
	assert.Equal(t, "user_registered", last.Event["type"])

	_, err = f.auth.Register(ctx, "alice", "another1")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.auth.Register(ctx, "bob", "short")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.auth.Register(ctx, "", "secret1")
	assert.ErrorIs(t, err, ErrValidation)

	assert.EqualValues(t, 1, f.count(t, &models.User{}))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, "alice", "wrong-pass", testMeta)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, "nobody", "secret1", testMeta)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := f.auth.Login(ctx, "alice", "secret1", testMeta)
	require.NoError(t, err)
	assert.False(t, res.IsAdmin)
	assert.True(t, res.RefreshExp.After(res.AccessExp))

	claims, err := tokens.AccessClaimsFromToken(res.AccessToken, f.auth.AccessSecret)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, models.RoleUser, claims.Role)

	refresh, err := tokens.RefreshClaimsFromToken(res.RefreshToken, f.auth.RefreshSecret)
	require.NoError(t, err)
	stored, err := f.repo.FindRefreshByJTI(ctx, refresh.ID)
	require.NoError(t, err)
	assert.Equal(t, tokens.HashToken(res.RefreshToken), stored.TokenHash)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)
	assert.Equal(t, "go-test", stored.UserAgent)
	assert.False(t, stored.Revoked)
}

func TestRefresh_RotatesAndRereadsRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	first, err := f.auth.Login(ctx, "alice", "secret1", testMeta)
	require.NoError(t, err)

	_, err = f.auth.SetRole(ctx, user.ID, models.RoleAdmin)
	require.NoError(t, err)

	second, err := f.auth.Refresh(ctx, first.RefreshToken, testMeta)
	require.NoError(t, err)
	assert.True(t, second.IsAdmin)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	claims, err := tokens.AccessClaimsFromToken(second.AccessToken, f.auth.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = f.auth.Refresh(ctx, first.RefreshToken, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.auth.Refresh(ctx, second.RefreshToken, testMeta)
	assert.NoError(t, err)
}

func TestRefresh_RejectsForeignTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Refresh(ctx, "not-a-token", testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// signed correctly but never stored
	tok, _, err := tokens.CreateRefreshToken(f.auth.RefreshSecret, 1, time.Now().Add(tokens.RefreshTTL))
	require.NoError(t, err)
	_, err = f.auth.Refresh(ctx, tok, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	res, err := f.auth.Login(ctx, "alice", "secret1", testMeta)
	require.NoError(t, err)

	require.NoError(t, f.auth.LogOut(ctx, ""))
	require.NoError(t, f.auth.LogOut(ctx, res.RefreshToken))

	_, err = f.auth.Refresh(ctx, res.RefreshToken, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestSetRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = f.auth.SetRole(ctx, user.ID, "root")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.auth.SetRole(ctx, user.ID+10, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.auth.SetRole(ctx, user.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
}
