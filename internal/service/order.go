package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

// StockObserver is told which products had their stock moved by an order.
type StockObserver interface {
	StockChanged(ctx context.Context, productIDs ...uint)
}

type OrderService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
	Stock  StockObserver
}

// PlaceOrder converts the user's cart into a Pending order. Stock is
// reserved, the order and its items are written and the cart is emptied
// in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.place", "user_id", userID)

	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var order *models.Order
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		lines, err := tx.GetCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		total := cartTotal(lines)
		if !total.IsPositive() {
			return fmt.Errorf("cart total is %s: %w", total, ErrEmptyCart)
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			ok, err := tx.ReserveStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return fmt.Errorf("reserve stock: %w", err)
			}
			if !ok {
				return fmt.Errorf("product %d: %w", line.ProductID, ErrInsufficientStock)
			}
			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Name:      line.Product.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.Product.Price,
				LineTotal: lineTotal(line),
			})
		}

		order = &models.Order{
			UserID: userID,
			Total:  total,
			Status: models.OrderStatusPending,
			Items:  items,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if _, err := tx.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrInsufficientStock) {
			l.Warn("place_order_rejected", "reason", err.Error())
		} else {
			l.Error("place_order_error", "status", 500, "error", err)
		}
		return nil, err
	}

	l.Info("order_placed", "order_id", order.ID, "total", order.Total.StringFixed(2))
	s.stockChanged(ctx, order.Items)
	events.Publish(ctx, s.Events, events.TopicOrders, userKey(userID), map[string]any{
		"type":     "order_placed",
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.Total.StringFixed(2),
		"items":    len(order.Items),
	})
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	orders, err := s.Repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrderDetail returns the order with its items. Admins may read any
// order; everyone else only their own.
func (s *OrderService) GetOrderDetail(ctx context.Context, orderID, requesterID uint, role string) (*models.Order, error) {
	if requesterID == 0 {
		return nil, ErrUnauthenticated
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.UserID != requesterID && role != models.RoleAdmin {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrForbidden)
	}
	return order, nil
}

// CancelOrder moves a Pending order to Cancelled and returns its stock.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.cancel", "user_id", userID, "order_id", orderID)

	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var order *models.Order
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.GetOrder(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if o.UserID != userID {
			return fmt.Errorf("order %d: %w", orderID, ErrForbidden)
		}
		if !o.Status.CanTransitionTo(models.OrderStatusCancelled) {
			return fmt.Errorf("order %d is %s: %w", orderID, o.Status, ErrOrderNotPending)
		}

		ok, err := tx.UpdateOrderStatus(ctx, orderID, o.Status, models.OrderStatusCancelled)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !ok {
			return fmt.Errorf("order %d changed concurrently: %w", orderID, ErrOrderNotPending)
		}
		for _, it := range o.Items {
			if err := tx.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("release stock: %w", err)
			}
		}

		o.Status = models.OrderStatusCancelled
		order = o
		return nil
	})
	if err != nil {
		l.Warn("cancel_order_failed", "error", err)
		return nil, err
	}
	s.stockChanged(ctx, order.Items)

	events.Publish(ctx, s.Events, events.TopicOrders, userKey(userID), map[string]any{
		"type":     "order_cancelled",
		"order_id": order.ID,
		"user_id":  userID,
	})
	return order, nil
}

func (s *OrderService) stockChanged(ctx context.Context, items []models.OrderItem) {
	if s.Stock == nil || len(items) == 0 {
		return
	}
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	s.Stock.StockChanged(ctx, ids...)
}
