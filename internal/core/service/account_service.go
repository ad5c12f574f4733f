package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/port"
)

// AccountService is routine account CRUD. Authentication happens upstream;
// this only manages the wallet side of an account.
type AccountService struct {
	store port.LedgerStore
}

func NewAccountService(store port.LedgerStore) *AccountService {
	return &AccountService{store: store}
}

func (s *AccountService) Get(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

// Create registers an account with an opening balance.
func (s *AccountService) Create(ctx context.Context, a *domain.Account) error {
	if a.Balance.IsNegative() {
		return domain.ErrInvalidBalance
	}
	return s.store.CreateAccount(ctx, a)
}

// Deposit credits the wallet and returns the account with its new balance.
// The credit runs against the locked account row so it cannot race a
// concurrent checkout's debit.
func (s *AccountService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	account, err := tx.LockAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lock account %d: %w", userID, err)
	}
	if err := tx.CreditBalance(ctx, userID, amount); err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	account.Balance = account.Balance.Add(amount)
	return account, nil
}
