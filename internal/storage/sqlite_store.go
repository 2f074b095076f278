package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price_minor INTEGER NOT NULL,
	image TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS carts (
	user_id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL REFERENCES carts(user_id) ON DELETE CASCADE,
	product_id TEXT NOT NULL REFERENCES products(id),
	quantity INTEGER NOT NULL CHECK (quantity >= 1),
	options TEXT NOT NULL DEFAULT '{}',
	added_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_items_product
ON cart_items(user_id, product_id);
`

const itemColumns = `
	i.id, i.quantity, i.options, i.added_at,
	p.id, p.name, p.price_minor, p.image, p.active
`

// SQLiteStore is a SQLite-backed implementation of Store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// foreign_keys is per connection; one connection keeps it in force.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, product Product) error {
	if product.ID == "" || product.Name == "" {
		return fmt.Errorf("invalid product: id=%q name=%q", product.ID, product.Name)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price_minor, image, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price_minor = excluded.price_minor,
			image = excluded.image,
			active = excluded.active
	`, product.ID, product.Name, int64(product.Price), product.Image, product.Active)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, productID string) (Product, error) {
	var product Product
	var price int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_minor, image, active
		FROM products
		WHERE id = ? AND active = 1
	`, productID).Scan(&product.ID, &product.Name, &price, &product.Image, &product.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	product.Price = money.Amount(price)
	return product, nil
}

func (s *SQLiteStore) GetCart(ctx context.Context, userID string) (Cart, error) {
	if userID == "" {
		return Cart{}, errors.New("userId is required")
	}
	cart := Cart{UserID: userID, Items: make([]CartItem, 0)}
	var updatedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT updated_at FROM carts WHERE user_id = ?", userID).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cart, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("get cart: %w", err)
	}
	if updatedAt.Valid {
		cart.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM cart_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.user_id = ?
		ORDER BY i.seq ASC
	`, userID)
	if err != nil {
		return Cart{}, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return Cart{}, err
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}
	return cart, nil
}

func (s *SQLiteStore) AddItem(ctx context.Context, userID string, productID string, quantity int, options json.RawMessage) (CartItem, error) {
	if userID == "" {
		return CartItem{}, errors.New("userId is required")
	}
	if quantity < 1 {
		return CartItem{}, ErrInvalidQuantity
	}
	if len(options) == 0 || string(options) == "null" {
		options = json.RawMessage("{}")
	}
	if !json.Valid(options) {
		return CartItem{}, errors.New("custom_specifications must be valid JSON")
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return CartItem{}, err
	}

	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CartItem{}, fmt.Errorf("begin tx: %w", err)
	}
	now := s.now().Unix()
	if err := touchCart(ctx, transaction, userID, now); err != nil {
		_ = transaction.Rollback()
		return CartItem{}, err
	}
	var itemID string
	err = transaction.QueryRowContext(ctx, `
		SELECT id FROM cart_items WHERE user_id = ? AND product_id = ?
	`, userID, productID).Scan(&itemID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		itemID = uuid.NewString()
		_, err = transaction.ExecContext(ctx, `
			INSERT INTO cart_items (id, user_id, product_id, quantity, options, added_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, itemID, userID, productID, quantity, string(options), now)
		if err != nil {
			_ = transaction.Rollback()
			return CartItem{}, fmt.Errorf("insert cart item: %w", err)
		}
	case err != nil:
		_ = transaction.Rollback()
		return CartItem{}, fmt.Errorf("find cart item: %w", err)
	default:
		_, err = transaction.ExecContext(ctx, `
			UPDATE cart_items SET quantity = quantity + ? WHERE id = ?
		`, quantity, itemID)
		if err != nil {
			_ = transaction.Rollback()
			return CartItem{}, fmt.Errorf("increment cart item: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return CartItem{}, fmt.Errorf("commit cart item: %w", err)
	}
	return s.getItem(ctx, userID, itemID)
}

func (s *SQLiteStore) UpdateItemQuantity(ctx context.Context, userID string, itemID string, quantity int) (CartItem, error) {
	if quantity < 1 {
		return CartItem{}, ErrInvalidQuantity
	}
	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CartItem{}, fmt.Errorf("begin tx: %w", err)
	}
	result, err := transaction.ExecContext(ctx, `
		UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?
	`, quantity, itemID, userID)
	if err != nil {
		_ = transaction.Rollback()
		return CartItem{}, fmt.Errorf("update cart item: %w", err)
	}
	if err := requireAffected(result); err != nil {
		_ = transaction.Rollback()
		return CartItem{}, err
	}
	if err := touchCart(ctx, transaction, userID, s.now().Unix()); err != nil {
		_ = transaction.Rollback()
		return CartItem{}, err
	}
	if err := transaction.Commit(); err != nil {
		return CartItem{}, fmt.Errorf("commit cart item: %w", err)
	}
	return s.getItem(ctx, userID, itemID)
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, userID string, itemID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id = ? AND user_id = ?
	`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStore) ClearCart(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getItem(ctx context.Context, userID string, itemID string) (CartItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM cart_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.id = ? AND i.user_id = ?
	`, itemID, userID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CartItem{}, ErrNotFound
	}
	return item, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (CartItem, error) {
	var item CartItem
	var options string
	var addedAt, price int64
	err := row.Scan(
		&item.ID, &item.Quantity, &options, &addedAt,
		&item.Product.ID, &item.Product.Name, &price, &item.Product.Image, &item.Product.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CartItem{}, err
	}
	if err != nil {
		return CartItem{}, fmt.Errorf("scan cart item: %w", err)
	}
	item.Options = json.RawMessage(options)
	item.AddedAt = time.Unix(addedAt, 0).UTC()
	item.Product.Price = money.Amount(price)
	return item, nil
}

func touchCart(ctx context.Context, transaction *sql.Tx, userID string, now int64) error {
	_, err := transaction.ExecContext(ctx, `
		INSERT INTO carts (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at
	`, userID, now, now)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
