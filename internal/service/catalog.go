package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
)

const (
	productsCacheKey = "catalog:products"
	productsCacheTTL = 5 * time.Minute
)

// ProductIndex is the full-text index kept next to the store.
type ProductIndex interface {
	IndexProduct(ctx context.Context, p models.Product) error
	Reindex(ctx context.Context, products []models.Product) error
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
}

// CatalogService serves products. Cache and Index are optional.
type CatalogService struct {
	Repo   *repo.GormRepo
	Cache  cache.Cache
	Index  ProductIndex
	Events events.Publisher
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.list")

	if s.Cache != nil {
		raw, ok, err := s.Cache.Get(ctx, productsCacheKey)
		switch {
		case err != nil:
			l.Warn("cache_get_error", "error", err)
		case ok:
			var items []models.Product
			decodeErr := json.Unmarshal(raw, &items)
			if decodeErr == nil {
				return items, nil
			}
			l.Warn("cache_decode_error", "error", decodeErr)
		}
	}

	items, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.Cache.Set(ctx, productsCacheKey, raw, productsCacheTTL); err != nil {
				l.Warn("cache_set_error", "error", err)
			}
		}
	}
	return items, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	return p, nil
}

// SearchProducts queries the index when one is configured and falls back
// to a substring match in the store otherwise or when the index fails.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, page, size int) (*transport.ProductPage, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.search")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", ErrValidation)
	}
	if page < 1 {
		page = 1
	}
	offset, limit := util.Calculate(page, size)

	var (
		total int64
		items []models.Product
		err   error
	)
	if s.Index != nil {
		total, items, err = s.Index.Search(ctx, query, offset, limit)
		if err != nil {
			l.Warn("index_search_error", "error", err)
		}
	}
	if s.Index == nil || err != nil {
		total, items, err = s.Repo.SearchProducts(ctx, query, offset, limit)
		if err != nil {
			return nil, fmt.Errorf("search products: %w", err)
		}
	}
	if items == nil {
		items = []models.Product{}
	}

	return &transport.ProductPage{
		Data: items,
		Meta: transport.PageMeta{Page: page, Size: limit, Total: total},
	}, nil
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrValidation)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative: %w", ErrValidation)
	}
	return nil
}

func stockFrom(v int) (uint, error) {
	if v < 0 {
		return 0, fmt.Errorf("stock cannot be negative: %w", ErrValidation)
	}
	return uint(v), nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	stock, err := stockFrom(req.Stock)
	if err != nil {
		return nil, err
	}
	p := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       stock,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.afterWrite(ctx, p, "product_created")
	return p, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, id uint, req transport.PatchProductRequest) (*models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = req.Price.Round(2)
	}
	if req.Stock != nil {
		stock, err := stockFrom(*req.Stock)
		if err != nil {
			return nil, err
		}
		p.Stock = stock
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.Repo.SaveProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	s.afterWrite(ctx, p, "product_updated")
	return p, nil
}

// afterWrite keeps the index, the cache and subscribers in line with a
// committed product change. None of it fails the write.
func (s *CatalogService) afterWrite(ctx context.Context, p *models.Product, eventType string) {
	l := logging.FromContext(ctx).With("svc", "catalog.write", "product_id", p.ID)

	if s.Index != nil {
		if err := s.Index.IndexProduct(ctx, *p); err != nil {
			l.Warn("index_product_error", "error", err)
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, productsCacheKey); err != nil {
			l.Warn("cache_invalidate_error", "error", err)
		}
	}
	events.Publish(ctx, s.Events, events.TopicProducts, strconv.FormatUint(uint64(p.ID), 10), map[string]any{
		"type":       eventType,
		"product_id": p.ID,
		"name":       p.Name,
		"price":      p.Price.StringFixed(2),
		"stock":      p.Stock,
	})
}

// Reindex pushes every stored product into the index.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, nil
	}
	items, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if err := s.Index.Reindex(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// StockChanged drops the cached listing and re-indexes the given products
// after their stock moved outside the catalog, as orders do.
func (s *CatalogService) StockChanged(ctx context.Context, ids ...uint) {
	l := logging.FromContext(ctx).With("svc", "catalog.stock")

	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, productsCacheKey); err != nil {
			l.Warn("cache_invalidate_error", "error", err)
		}
	}
	if s.Index == nil {
		return
	}
	for _, id := range ids {
		p, err := s.Repo.GetProduct(ctx, id)
		if err != nil {
			l.Warn("reload_product_error", "product_id", id, "error", err)
			continue
		}
		if err := s.Index.IndexProduct(ctx, *p); err != nil {
			l.Warn("index_product_error", "product_id", id, "error", err)
		}
	}
}
