package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusCompleted OrderStatus = "Completed"
)

// transitions lists the statuses reachable from each status. Terminal
// statuses have no entry.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusCancelled, OrderStatusCompleted},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"          json:"username"`
	PasswordHash string    `gorm:"not null"                      json:"-"`
	Role         string    `gorm:"not null;default:user"         json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime"                json:"created_at"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	Name        string          `gorm:"not null"                     json:"name"`
	Description string          `gorm:"not null;default:''"          json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"price"`
	Stock       uint            `gorm:"not null;default:0"           json:"stock"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_product;not null"   json:"user_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_user_product;not null"   json:"product_id"`
	Quantity  uint      `gorm:"not null;default:1;check:quantity>0"     json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime"                          json:"created_at"`
	Product   Product   `gorm:"foreignKey:ProductID"                    json:"-"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

type Order struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	UserID    uint            `gorm:"index;not null"               json:"user_id"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"total"`
	Status    OrderStatus     `gorm:"type:varchar(16);not null"    json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime"               json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"               json:"updated_at"`
	Items     []OrderItem     `gorm:"foreignKey:OrderID"           json:"items,omitempty"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	OrderID   uint            `gorm:"index;not null"               json:"order_id"`
	ProductID uint            `gorm:"not null"                     json:"product_id"`
	Name      string          `gorm:"not null"                     json:"name"`
	Quantity  uint            `gorm:"not null;check:quantity>0"    json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"line_total"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"             json:"id"`
	JTI       string    `gorm:"uniqueIndex;not null"   json:"jti"`
	TokenHash string    `gorm:"uniqueIndex;not null"   json:"-"`
	UserID    uint      `gorm:"index;not null"         json:"user_id"`
	IPAddress string    `gorm:"not null;default:''"    json:"ip_address"`
	UserAgent string    `gorm:"not null;default:''"    json:"user_agent"`
	ExpiresAt int64     `gorm:"not null"               json:"expires_at"`
	Revoked   bool      `gorm:"default:false"          json:"revoked"`
	CreatedAt time.Time `gorm:"autoCreateTime"         json:"created_at"`
}

func All() []any {
	return []any{&User{}, &Product{}, &CartItem{}, &Order{}, &OrderItem{}, &RefreshToken{}}
}
