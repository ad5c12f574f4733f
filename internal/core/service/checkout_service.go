package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/port"
)

// CheckoutService turns a user's cart into a persisted order inside one
// ledger transaction: validate against locked rows, then debit stock and
// balance, create the order and clear the cart, all or nothing. Committed
// placements are announced on Events.
type CheckoutService struct {
	store     port.LedgerStore
	events    chan domain.OrderPlaced
	closeOnce sync.Once
}

func NewCheckoutService(store port.LedgerStore, queueSize int) *CheckoutService {
	return &CheckoutService{
		store:  store,
		events: make(chan domain.OrderPlaced, queueSize),
	}
}

// PlaceOrder places an order from the user's current cart. It returns the
// created order, or one of domain.ErrEmptyCart, *domain.InsufficientStockError,
// *domain.InsufficientBalanceError, domain.ErrAccountNotFound; any other error
// is an internal store failure. On every non-nil error nothing was written.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID int64) (*domain.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	lines, err := tx.CartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	// Lock products in ascending id order, then the account, so concurrent
	// placements over overlapping rows cannot form a deadlock cycle.
	products := make(map[int64]*domain.Product, len(lines))
	for _, id := range distinctProductIDs(lines) {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock product %d: %w", id, err)
		}
		if p != nil {
			products[id] = p
		}
	}
	account, err := tx.LockAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lock account %d: %w", userID, err)
	}

	// Validate every line against the locked stock and collect every
	// shortfall; a vanished product counts as available 0.
	var shortfalls []domain.StockShortfall
	total := decimal.Zero
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: 0,
			})
			continue
		}
		if line.Quantity > p.Stock {
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: p.ID,
				Requested: line.Quantity,
				Available: p.Stock,
			})
			continue
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if len(shortfalls) > 0 {
		return nil, &domain.InsufficientStockError{Shortfalls: shortfalls}
	}

	if account.Balance.LessThan(total) {
		return nil, &domain.InsufficientBalanceError{Shortfall: total.Sub(account.Balance)}
	}

	order := &domain.Order{
		Reference: uuid.NewString(),
		UserID:    userID,
		Total:     total,
		CreatedAt: time.Now().UTC(),
		Items:     make([]domain.OrderItem, 0, len(lines)),
	}
	for _, line := range lines {
		p := products[line.ProductID]
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			Price:     p.Price,
		})
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	for _, line := range lines {
		if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, fmt.Errorf("decrement stock for product %d: %w", line.ProductID, err)
		}
	}
	if err := tx.DebitBalance(ctx, userID, total); err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	if err := tx.ClearCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	select {
	case s.events <- domain.OrderPlaced{
		OrderID:  order.ID,
		UserID:   userID,
		Total:    total,
		PlacedAt: order.CreatedAt,
	}:
	default:
		// The feed is best effort; a full queue must not fail a committed
		// order.
	}

	return order, nil
}

// Events exposes committed placements for post-commit consumers.
func (s *CheckoutService) Events() <-chan domain.OrderPlaced {
	return s.events
}

func (s *CheckoutService) Close() {
	s.closeOnce.Do(func() { close(s.events) })
}

func distinctProductIDs(lines []domain.CartLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
