package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/db/dbtest"
	"github.com/Skotchmaster/storefront/internal/models"
)

func newProduct(t *testing.T, r *GormRepo, stock uint) models.Product {
	t.Helper()
	p := models.Product{Name: "Widget", Price: decimal.RequireFromString("2.50"), Stock: stock}
	require.NoError(t, r.CreateProduct(context.Background(), &p))
	return p
}

func TestAddToCart_Upserts(t *testing.T) {
	r := New(dbtest.New(t))
	ctx := context.Background()
	p := newProduct(t, r, 5)

	first := &models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 2}
	require.NoError(t, r.AddToCart(ctx, first))
	second := &models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 4}
	require.NoError(t, r.AddToCart(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 6, second.Quantity)

	items, err := r.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0].Product.Name)
}

func TestCartMissingLine(t *testing.T) {
	r := New(dbtest.New(t))
	ctx := context.Background()

	_, err := r.SetCartQuantity(ctx, 1, 1, 3)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, r.DeleteFromCart(ctx, 1, 1), gorm.ErrRecordNotFound)

	n, err := r.ClearCart(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReserveStock(t *testing.T) {
	r := New(dbtest.New(t))
	ctx := context.Background()
	p := newProduct(t, r, 3)

	ok, err := r.ReserveStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ReserveStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.ReserveStock(ctx, p.ID+1, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.ReleaseStock(ctx, p.ID, 2))
	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.Stock)
}

func TestTransaction_RollsBack(t *testing.T) {
	r := New(dbtest.New(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := r.Transaction(ctx, func(tx *GormRepo) error {
		require.NoError(t, tx.CreateProduct(ctx, &models.Product{Name: "Ghost", Price: decimal.NewFromInt(1)}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	items, err := r.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRotateRefreshToken(t *testing.T) {
	r := New(dbtest.New(t))
	ctx := context.Background()

	old := &models.RefreshToken{JTI: "old", TokenHash: "h-old", UserID: 1, ExpiresAt: 1 << 40}
	require.NoError(t, r.AddRefreshToken(ctx, old))

	next := &models.RefreshToken{JTI: "new", TokenHash: "h-new", UserID: 1, ExpiresAt: 1 << 40}
	require.NoError(t, r.RotateRefreshToken(ctx, "old", next))

	again := &models.RefreshToken{JTI: "newer", TokenHash: "h-newer", UserID: 1, ExpiresAt: 1 << 40}
	assert.ErrorIs(t, r.RotateRefreshToken(ctx, "old", again), ErrTokenExpiredOrRevoked)

	expired := &models.RefreshToken{JTI: "exp", TokenHash: "h-exp", UserID: 1, ExpiresAt: 1}
	require.NoError(t, r.AddRefreshToken(ctx, expired))
	assert.ErrorIs(t, r.RotateRefreshToken(ctx, "exp", again), ErrTokenExpiredOrRevoked)

	got, err := r.FindRefreshByJTI(ctx, "old")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestCreateUserIfNotExists(t *testing.T) {
	r := New(dbtest.New(t))
	ctx := context.Background()

	require.NoError(t, r.CreateUserIfNotExists(ctx, &models.User{Username: "alice", PasswordHash: "x", Role: models.RoleUser}))
	err := r.CreateUserIfNotExists(ctx, &models.User{Username: "alice", PasswordHash: "y", Role: models.RoleUser})
	assert.ErrorIs(t, err, ErrUserAlreadyExist)

	require.NoError(t, r.UpdateUserRole(ctx, 1, models.RoleAdmin))
	assert.ErrorIs(t, r.UpdateUserRole(ctx, 99, models.RoleAdmin), gorm.ErrRecordNotFound)
}

func TestCreateUserIfNotExists_LosesRace(t *testing.T) {
	gdb := dbtest.New(t)
	r := New(gdb)
	ctx := context.Background()

	// another registration lands after the lookup missed but before the insert
	inserted := false
	require.NoError(t, gdb.Callback().Create().Before("gorm:begin_transaction").Register("test:concurrent_signup", func(db *gorm.DB) {
		u, ok := db.Statement.Dest.(*models.User)
		if !ok || inserted {
			return
		}
		inserted = true
		_, err := db.Statement.ConnPool.ExecContext(db.Statement.Context,
			"INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)",
			u.Username, "other", models.RoleUser, time.Now().UTC())
		require.NoError(t, err)
	}))

	err := r.CreateUserIfNotExists(ctx, &models.User{Username: "bob", PasswordHash: "x", Role: models.RoleUser})
	assert.True(t, inserted)
	assert.ErrorIs(t, err, ErrUserAlreadyExist)

	got, err := r.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "other", got.PasswordHash)
}
