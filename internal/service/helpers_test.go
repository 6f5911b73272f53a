package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/db/dbtest"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type recordedEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	m, _ := event.(map[string]any)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Topic: topic, Key: key, Event: m})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event["type"].(string))
	}
	return out
}

func (p *recordingPublisher) last() recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	db      *gorm.DB
	repo    *repo.GormRepo
	pub     *recordingPublisher
	cache   *cache.Memory
	cart    *CartService
	orders  *OrderService
	catalog *CatalogService
	auth    *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb := dbtest.New(t)
	r := repo.New(gdb)
	pub := &recordingPublisher{}
	mem := cache.NewMemory()
	catalog := &CatalogService{Repo: r, Cache: mem, Events: pub}
	return &fixture{
		db:      gdb,
		repo:    r,
		pub:     pub,
		cache:   mem,
		cart:    &CartService{Repo: r, Events: pub},
		orders:  &OrderService{Repo: r, Events: pub, Stock: catalog},
		catalog: catalog,
		auth: &AuthService{
			Repo:          r,
			AccessSecret:  []byte("access-secret"),
			RefreshSecret: []byte("refresh-secret"),
			Events:        pub,
		},
	}
}

func (f *fixture) product(t *testing.T, name, price string, stock uint) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, f.repo.CreateProduct(context.Background(), &p))
	return p
}

func (f *fixture) stock(t *testing.T, productID uint) uint {
	t.Helper()
	p, err := f.repo.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
