package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/port"
)

// MySQLAdapter implements port.LedgerStore over the schema in
// scripts/schema.sql. Locked reads use SELECT ... FOR UPDATE; the lock is
// held until the transaction commits or rolls back.
type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type productRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Stock       int             `db:"stock"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type accountRow struct {
	ID        int64           `db:"id"`
	Username  string          `db:"username"`
	Email     string          `db:"email"`
	Balance   decimal.Decimal `db:"balance"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Balance:   r.Balance,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type cartLineRow struct {
	ProductID int64 `db:"product_id"`
	Quantity  int   `db:"quantity"`
}

const productColumns = `id, name, description, price, stock, created_at, updated_at`
const accountColumns = `id, username, email, balance, created_at, updated_at`

func (m *MySQLAdapter) Begin(ctx context.Context) (port.LedgerTx, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &mysqlTx{tx: tx}, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	err := m.db.SelectContext(ctx, &rows,
		`SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	err := m.db.GetContext(ctx, &row,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	p := row.toDomain()
	return &p, nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO products (name, description, price, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Price, p.Stock, now, now)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, price = ?, stock = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Stock, now, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if rows == 0 {
		// Either missing or unchanged; distinguish with a cheap existence
		// probe so callers get a useful error for the missing case.
		p2, err := m.GetProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		if p2 == nil {
			return domain.ErrProductNotFound
		}
	}
	p.UpdatedAt = now
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id int64) error {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if rows == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (m *MySQLAdapter) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var row accountRow
	err := m.db.GetContext(ctx, &row,
		`SELECT `+accountColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a := row.toDomain()
	return &a, nil
}

func (m *MySQLAdapter) CreateAccount(ctx context.Context, a *domain.Account) error {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO users (username, email, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.Username, a.Email, a.Balance, now, now)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("account id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (m *MySQLAdapter) CartEntries(ctx context.Context, userID int64) ([]domain.CartEntry, error) {
	type entryRow struct {
		productRow
		Quantity int `db:"cart_quantity"`
	}
	var rows []entryRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.name, p.description, p.price, p.stock,
		       p.created_at, p.updated_at, c.quantity AS cart_quantity
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ?
		ORDER BY p.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("cart entries: %w", err)
	}
	out := make([]domain.CartEntry, 0, len(rows))
	for _, r := range rows {
		p := r.productRow.toDomain()
		out = append(out, domain.CartEntry{
			Product:  p,
			Quantity: r.Quantity,
			Subtotal: p.Price.Mul(decimal.NewFromInt(int64(r.Quantity))),
		})
	}
	return out, nil
}

type mysqlTx struct {
	tx *sqlx.Tx
}

func (t *mysqlTx) CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	var rows []cartLineRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id = ? ORDER BY product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("cart lines: %w", err)
	}
	out := make([]domain.CartLine, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.CartLine{ProductID: r.ProductID, Quantity: r.Quantity})
	}
	return out, nil
}

func (t *mysqlTx) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	err := t.tx.GetContext(ctx, &row,
		`SELECT `+productColumns+` FROM products WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock product: %w", err)
	}
	p := row.toDomain()
	return &p, nil
}

func (t *mysqlTx) LockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var row accountRow
	err := t.tx.GetContext(ctx, &row,
		`SELECT `+accountColumns+` FROM users WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	a := row.toDomain()
	return &a, nil
}

func (t *mysqlTx) LockCartLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error) {
	var row cartLineRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id = ? AND product_id = ? FOR UPDATE`, userID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock cart line: %w", err)
	}
	return &domain.CartLine{ProductID: row.ProductID, Quantity: row.Quantity}, nil
}

func (t *mysqlTx) UpsertCartLine(ctx context.Context, userID, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (t *mysqlTx) DeleteCartLine(ctx context.Context, userID, productID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (t *mysqlTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (reference, user_id, total, created_at)
		VALUES (?, ?, ?, ?)`,
		order.Reference, order.UserID, order.Total, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	order.ID = id

	for _, item := range order.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, quantity, price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Name, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - ?, updated_at = NOW()
		WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	// Stock was validated under the same row lock, so a miss here means the
	// caller skipped validation.
	if rows != 1 {
		return fmt.Errorf("stock underflow for product %d", productID)
	}
	return nil
}

func (t *mysqlTx) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - ?, updated_at = NOW()
		WHERE id = ?`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	return nil
}

func (t *mysqlTx) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET balance = balance + ?, updated_at = NOW()
		WHERE id = ?`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

func (t *mysqlTx) ClearCart(ctx context.Context, userID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (t *mysqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *mysqlTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
