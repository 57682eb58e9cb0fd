package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"food-explorer/pkg/models"
)

// Repository persists carts per session in SQLite so they survive restarts.
type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, db *sql.DB) (*Repository, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cart_lines (
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			code TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			product TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, code)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create cart_lines: %w", err)
	}
	return &Repository{db: db}, nil
}

// Save replaces the stored cart of sessionID with lines.
func (r *Repository) Save(ctx context.Context, sessionID string, lines []Line) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear cart %s: %w", sessionID, err)
	}

	now := time.Now().UTC()
	for i, line := range lines {
		data, err := json.Marshal(line.Product)
		if err != nil {
			return fmt.Errorf("marshal product %s: %w", line.Product.Code, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cart_lines (session_id, position, code, quantity, product, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, i, line.Product.Code, line.Quantity, string(data), now,
		)
		if err != nil {
			return fmt.Errorf("store cart line %s/%s: %w", sessionID, line.Product.Code, err)
		}
	}
	return tx.Commit()
}

// Load returns the stored lines of sessionID in their original order.
// An unknown session has an empty cart.
func (r *Repository) Load(ctx context.Context, sessionID string) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT quantity, product FROM cart_lines WHERE session_id = ? ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", sessionID, err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var quantity int
		var data string
		if err := rows.Scan(&quantity, &data); err != nil {
			return nil, err
		}
		var product models.Product
		if err := json.Unmarshal([]byte(data), &product); err != nil {
			return nil, fmt.Errorf("decode cart line of %s: %w", sessionID, err)
		}
		lines = append(lines, Line{Product: product, Quantity: quantity})
	}
	return lines, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE session_id = ?`, sessionID)
	return err
}
