package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Business outcomes, not defects. Callers discriminate with errors.Is /
// errors.As; anything else coming out of a service is an internal failure.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrAccountNotFound      = errors.New("account not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrQuantityExceedsStock = errors.New("quantity exceeds available stock")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidPrice         = errors.New("price must not be negative")
	ErrInvalidStock         = errors.New("stock must not be negative")
	ErrInvalidBalance       = errors.New("balance must not be negative")
)

// StockShortfall describes one cart line that cannot be fulfilled.
// Available is 0 when the product no longer exists.
type StockShortfall struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

// InsufficientStockError carries every failing line of a placement attempt,
// not just the first.
type InsufficientStockError struct {
	Shortfalls []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d product(s)", len(e.Shortfalls))
}

// InsufficientBalanceError reports how much the account is short of the
// order total.
type InsufficientBalanceError struct {
	Shortfall decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance, %s more needed", e.Shortfall.StringFixed(2))
}
