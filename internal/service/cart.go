package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type CartLine struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  uint            `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Cart struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type CartService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

func lineTotal(item models.CartItem) decimal.Decimal {
	return item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func cartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(lineTotal(it))
	}
	return total
}

func userKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func (s *CartService) publish(ctx context.Context, userID uint, event map[string]any) {
	event["user_id"] = userID
	events.Publish(ctx, s.Events, events.TopicCarts, userKey(userID), event)
}

func (s *CartService) GetCart(ctx context.Context, userID uint) (*Cart, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	items, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	cart := &Cart{Items: make([]CartLine, 0, len(items)), Total: cartTotal(items)}
	for _, it := range items {
		cart.Items = append(cart.Items, CartLine{
			ProductID: it.ProductID,
			Name:      it.Product.Name,
			Price:     it.Product.Price,
			Quantity:  it.Quantity,
			LineTotal: lineTotal(it),
		})
	}
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error) {
	l := logging.FromContext(ctx).With("svc", "cart.add_item", "user_id", userID, "product_id", productID)

	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be more than zero: %w", ErrValidation)
	}
	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d does not exist: %w", productID, ErrValidation)
		}
		return nil, fmt.Errorf("load product: %w", err)
	}

	item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: uint(quantity)}
	if err := s.Repo.AddToCart(ctx, item); err != nil {
		l.Error("add_item_error", "status", 500, "error", err)
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	s.publish(ctx, userID, map[string]any{
		"type":       "cart_item_added",
		"product_id": productID,
		"added":      quantity,
		"quantity":   item.Quantity,
	})
	return item, nil
}

// SetQuantity overwrites the line quantity. A quantity of zero or less
// removes the line and returns a nil item.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if quantity <= 0 {
		return nil, s.RemoveItem(ctx, userID, productID)
	}

	item, err := s.Repo.SetCartQuantity(ctx, userID, productID, uint(quantity))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d is not in the cart: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set quantity: %w", err)
	}

	s.publish(ctx, userID, map[string]any{
		"type":       "cart_item_updated",
		"product_id": productID,
		"quantity":   item.Quantity,
	})
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	err := s.Repo.DeleteFromCart(ctx, userID, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("product %d is not in the cart: %w", productID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}

	s.publish(ctx, userID, map[string]any{
		"type":       "cart_item_removed",
		"product_id": productID,
	})
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	n, err := s.Repo.ClearCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if n > 0 {
		s.publish(ctx, userID, map[string]any{"type": "cart_cleared", "removed": n})
	}
	return nil
}
