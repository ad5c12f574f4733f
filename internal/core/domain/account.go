package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user identity with a wallet balance. The balance is debited
// only by checkout; storage may hold a negative balance (admin adjustments),
// checkout just never drives it below zero itself.
type Account struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
