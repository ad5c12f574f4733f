package domain

import "github.com/shopspring/decimal"

// CartLine is one (product, quantity) pairing in a user's pending cart.
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CartEntry is a cart line joined with its product for presentation reads.
type CartEntry struct {
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}
