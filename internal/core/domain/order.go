package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable record of a completed purchase. Total equals the sum
// of quantity*price over its items, computed once at placement from the
// locked product prices.
type Order struct {
	ID        int64           `json:"id"`
	Reference string          `json:"reference"`
	UserID    int64           `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderItem     `json:"items"`
}

// OrderItem captures quantity and the unit price at time of purchase; later
// product price changes never touch it.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderPlaced is emitted after a placement commits.
type OrderPlaced struct {
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}
