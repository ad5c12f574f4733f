package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/akeller/storefront/internal/core/domain"
)

// LedgerStore is the relational backing store for products, accounts, carts
// and orders. Begin opens a transaction with row-level locking; the plain
// reads and writes below run outside any caller-visible transaction.
type LedgerStore interface {
	Begin(ctx context.Context) (LedgerTx, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	// GetProduct returns (nil, nil) when the product does not exist.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// CreateProduct persists p and assigns p.ID.
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	// DeleteProduct removes the product; domain.ErrProductNotFound when
	// missing. Order items are unaffected, they snapshot name and price.
	DeleteProduct(ctx context.Context, id int64) error

	// GetAccount returns (nil, nil) when the account does not exist.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	// CreateAccount persists a and assigns a.ID.
	CreateAccount(ctx context.Context, a *domain.Account) error

	// CartEntries returns the user's cart joined with product details,
	// ordered by product id.
	CartEntries(ctx context.Context, userID int64) ([]domain.CartEntry, error)
}

// LedgerTx is one store transaction. Locked reads hold their row lock until
// Commit or Rollback. Rollback after Commit is a no-op, so callers defer it
// unconditionally as the cleanup for every exit path.
type LedgerTx interface {
	// CartLines reads the user's cart lines, ordered by product id.
	CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)

	// LockProduct locks the product row and returns its current state, or
	// (nil, nil) when the row no longer exists.
	LockProduct(ctx context.Context, id int64) (*domain.Product, error)
	// LockAccount locks the account row; domain.ErrAccountNotFound when
	// missing.
	LockAccount(ctx context.Context, id int64) (*domain.Account, error)
	// LockCartLine locks the user's line for one product, (nil, nil) when
	// absent.
	LockCartLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error)

	UpsertCartLine(ctx context.Context, userID, productID int64, quantity int) error
	DeleteCartLine(ctx context.Context, userID, productID int64) error

	// InsertOrder persists the order and its items, assigning order.ID.
	InsertOrder(ctx context.Context, order *domain.Order) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	ClearCart(ctx context.Context, userID int64) error

	Commit() error
	Rollback() error
}
