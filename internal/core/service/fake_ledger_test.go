package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/port"
)

var errInjected = errors.New("injected store failure")

// fakeLedger is an in-memory port.LedgerStore. A transaction holds the store
// mutex from Begin until Commit/Rollback, which serializes transactions the
// way row locks serialize them in MySQL, and writes are staged so Rollback
// leaves the store untouched.
type fakeLedger struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	accounts map[int64]domain.Account
	carts    map[int64][]domain.CartLine // insertion order preserved
	orders   []domain.Order
	nextID   int64

	lockOrder []int64 // product lock sequence of the most recent transaction
	failOn    string  // LedgerTx method name that should fail, "" for none
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		products: make(map[int64]domain.Product),
		accounts: make(map[int64]domain.Account),
		carts:    make(map[int64][]domain.CartLine),
		nextID:   1,
	}
}

func (f *fakeLedger) addProduct(id int64, name, price string, stock int) {
	f.products[id] = domain.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func (f *fakeLedger) addAccount(id int64, balance string) {
	f.accounts[id] = domain.Account{
		ID:      id,
		Balance: decimal.RequireFromString(balance),
	}
}

func (f *fakeLedger) setCart(userID int64, lines ...domain.CartLine) {
	f.carts[userID] = append([]domain.CartLine(nil), lines...)
}

func (f *fakeLedger) productStock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeLedger) accountBalance(id int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id].Balance
}

func (f *fakeLedger) cartLines(userID int64) []domain.CartLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CartLine(nil), f.carts[userID]...)
}

func (f *fakeLedger) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeLedger) Begin(ctx context.Context) (port.LedgerTx, error) {
	f.mu.Lock()
	f.lockOrder = nil
	return &fakeTx{
		f:             f,
		stockDeltas:   make(map[int64]int),
		balanceDebit:  make(map[int64]decimal.Decimal),
		balanceCredit: make(map[int64]decimal.Decimal),
		upserts:       make(map[cartKey]int),
		deletes:       make(map[cartKey]bool),
		clears:        make(map[int64]bool),
	}, nil
}

func (f *fakeLedger) ListProducts(ctx context.Context) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeLedger) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeLedger) CreateProduct(ctx context.Context, p *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.nextID
	f.nextID++
	f.products[p.ID] = *p
	return nil
}

func (f *fakeLedger) UpdateProduct(ctx context.Context, p *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return domain.ErrProductNotFound
	}
	f.products[p.ID] = *p
	return nil
}

func (f *fakeLedger) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeLedger) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeLedger) CreateAccount(ctx context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.nextID
	f.nextID++
	f.accounts[a.ID] = *a
	return nil
}

func (f *fakeLedger) CartEntries(ctx context.Context, userID int64) ([]domain.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CartEntry
	for _, line := range f.carts[userID] {
		p, ok := f.products[line.ProductID]
		if !ok {
			continue
		}
		out = append(out, domain.CartEntry{
			Product:  p,
			Quantity: line.Quantity,
			Subtotal: p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}
	return out, nil
}

type cartKey struct {
	userID    int64
	productID int64
}

type fakeTx struct {
	f    *fakeLedger
	done bool

	stockDeltas   map[int64]int
	balanceDebit  map[int64]decimal.Decimal
	balanceCredit map[int64]decimal.Decimal
	upserts       map[cartKey]int
	deletes       map[cartKey]bool
	clears        map[int64]bool
	inserted      []*domain.Order
}

func (t *fakeTx) fail(method string) bool { return t.f.failOn == method }

func (t *fakeTx) CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	if t.fail("CartLines") {
		return nil, errInjected
	}
	return append([]domain.CartLine(nil), t.f.carts[userID]...), nil
}

func (t *fakeTx) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if t.fail("LockProduct") {
		return nil, errInjected
	}
	t.f.lockOrder = append(t.f.lockOrder, id)
	p, ok := t.f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *fakeTx) LockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	if t.fail("LockAccount") {
		return nil, errInjected
	}
	a, ok := t.f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (t *fakeTx) LockCartLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error) {
	if t.fail("LockCartLine") {
		return nil, errInjected
	}
	for _, line := range t.f.carts[userID] {
		if line.ProductID == productID {
			l := line
			return &l, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) UpsertCartLine(ctx context.Context, userID, productID int64, quantity int) error {
	if t.fail("UpsertCartLine") {
		return errInjected
	}
	t.upserts[cartKey{userID, productID}] = quantity
	return nil
}

func (t *fakeTx) DeleteCartLine(ctx context.Context, userID, productID int64) error {
	if t.fail("DeleteCartLine") {
		return errInjected
	}
	t.deletes[cartKey{userID, productID}] = true
	return nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	if t.fail("InsertOrder") {
		return errInjected
	}
	order.ID = t.f.nextID
	t.f.nextID++
	t.inserted = append(t.inserted, order)
	return nil
}

func (t *fakeTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	if t.fail("DecrementStock") {
		return errInjected
	}
	t.stockDeltas[productID] += quantity
	return nil
}

func (t *fakeTx) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if t.fail("DebitBalance") {
		return errInjected
	}
	t.balanceDebit[userID] = t.balanceDebit[userID].Add(amount)
	return nil
}

func (t *fakeTx) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if t.fail("CreditBalance") {
		return errInjected
	}
	t.balanceCredit[userID] = t.balanceCredit[userID].Add(amount)
	return nil
}

func (t *fakeTx) ClearCart(ctx context.Context, userID int64) error {
	if t.fail("ClearCart") {
		return errInjected
	}
	t.clears[userID] = true
	return nil
}

func (t *fakeTx) Commit() error {
	if t.done {
		return errors.New("tx already finished")
	}
	if t.fail("Commit") {
		t.done = true
		t.f.mu.Unlock()
		return errInjected
	}

	for id, qty := range t.stockDeltas {
		p := t.f.products[id]
		p.Stock -= qty
		p.UpdatedAt = time.Now().UTC()
		t.f.products[id] = p
	}
	for id, amount := range t.balanceDebit {
		a := t.f.accounts[id]
		a.Balance = a.Balance.Sub(amount)
		a.UpdatedAt = time.Now().UTC()
		t.f.accounts[id] = a
	}
	for id, amount := range t.balanceCredit {
		a := t.f.accounts[id]
		a.Balance = a.Balance.Add(amount)
		a.UpdatedAt = time.Now().UTC()
		t.f.accounts[id] = a
	}
	for key, qty := range t.upserts {
		lines := t.f.carts[key.userID]
		found := false
		for i := range lines {
			if lines[i].ProductID == key.productID {
				lines[i].Quantity = qty
				found = true
				break
			}
		}
		if !found {
			lines = append(lines, domain.CartLine{ProductID: key.productID, Quantity: qty})
		}
		t.f.carts[key.userID] = lines
	}
	for key := range t.deletes {
		lines := t.f.carts[key.userID]
		out := lines[:0]
		for _, line := range lines {
			if line.ProductID != key.productID {
				out = append(out, line)
			}
		}
		t.f.carts[key.userID] = out
	}
	for userID := range t.clears {
		delete(t.f.carts, userID)
	}
	for _, order := range t.inserted {
		t.f.orders = append(t.f.orders, *order)
	}

	t.done = true
	t.f.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.f.mu.Unlock()
	return nil
}
