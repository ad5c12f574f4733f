package service

import (
	"context"
	"fmt"

	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/port"
)

// CartService owns the cart's own mutations. Checkout only ever reads the
// cart and clears it on success.
type CartService struct {
	store port.LedgerStore
}

func NewCartService(store port.LedgerStore) *CartService {
	return &CartService{store: store}
}

func (s *CartService) Get(ctx context.Context, userID int64) ([]domain.CartEntry, error) {
	return s.store.CartEntries(ctx, userID)
}

// Add increases the user's line for a product, creating it if absent. The
// resulting quantity must not exceed the product's locked stock.
func (s *CartService) Add(ctx context.Context, userID, productID int64, quantity int) error {
	return s.setQuantity(ctx, userID, productID, quantity, false)
}

// Update sets the line to an absolute quantity, same stock rule as Add.
func (s *CartService) Update(ctx context.Context, userID, productID int64, quantity int) error {
	return s.setQuantity(ctx, userID, productID, quantity, true)
}

func (s *CartService) setQuantity(ctx context.Context, userID, productID int64, quantity int, replace bool) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Product first, then the cart line, same relative order as checkout.
	product, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("lock product %d: %w", productID, err)
	}
	if product == nil {
		return domain.ErrProductNotFound
	}
	line, err := tx.LockCartLine(ctx, userID, productID)
	if err != nil {
		return fmt.Errorf("lock cart line: %w", err)
	}

	next := quantity
	if !replace && line != nil {
		next = line.Quantity + quantity
	}
	if next > product.Stock {
		return domain.ErrQuantityExceedsStock
	}

	if err := tx.UpsertCartLine(ctx, userID, productID, next); err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return tx.Commit()
}

func (s *CartService) Remove(ctx context.Context, userID, productID int64) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.DeleteCartLine(ctx, userID, productID); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return tx.Commit()
}
