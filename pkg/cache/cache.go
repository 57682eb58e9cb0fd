package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"food-explorer/pkg/models"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Open opens the SQLite database shared by the product cache and the cart
// repository. SQLite allows a single writer, so the pool holds one connection.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return db, nil
}

// Cache stores barcode lookups for ttl.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func New(db *sql.DB, ttl time.Duration) (*Cache, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			code TEXT NOT NULL PRIMARY KEY,
			data TEXT NOT NULL,
			fetched_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return nil, err
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

func (c *Cache) Get(code string) (*models.Product, bool) {
	var data string
	var fetchedAt time.Time

	err := c.db.QueryRow(
		`SELECT data, fetched_at FROM products WHERE code = ?`,
		code,
	).Scan(&data, &fetchedAt)

	if err != nil {
		return nil, false
	}

	if c.now().Sub(fetchedAt) > c.ttl {
		return nil, false
	}

	var product models.Product
	if err := json.Unmarshal([]byte(data), &product); err != nil {
		zap.L().Warn("Cache: failed to unmarshal product", zap.String("code", code), zap.Error(err))
		return nil, false
	}

	return &product, true
}

func (c *Cache) Set(code string, product *models.Product) {
	data, err := json.Marshal(product)
	if err != nil {
		zap.L().Warn("Cache: failed to marshal product", zap.String("code", code), zap.Error(err))
		return
	}

	_, err = c.db.Exec(
		`INSERT INTO products (code, data, fetched_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(code)
		 DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		code, string(data), c.now().UTC(),
	)
	if err != nil {
		zap.L().Warn("Cache: failed to store product", zap.String("code", code), zap.Error(err))
	}
}

// Purge removes expired entries and returns how many were dropped.
func (c *Cache) Purge() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM products WHERE fetched_at < ?`, c.now().Add(-c.ttl).UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *Cache) Close() error {
	return c.db.Close()
}
