package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kanbanBackend/models"
)

// CardRepository persists kanban cards.
type CardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create inserts c and returns a copy carrying the generated id.
func (r *CardRepository) Create(ctx context.Context, c *models.Card) (*models.Card, error) {
	if c == nil {
		return nil, errors.New("card is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO cards (title, description, status, priority, user_id) VALUES (?, ?, ?, ?, ?)`,
		c.Title, c.Description, c.Status, c.Priority, c.UserID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *c
	out.ID = id
	return &out, nil
}

// ListByOwner returns the user's cards in insertion order. No cards is an
// empty, non-nil slice.
func (r *CardRepository) ListByOwner(ctx context.Context, userID int64) ([]models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, title, description, status, priority, user_id FROM cards WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Card{}
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Status, &c.Priority, &c.UserID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites title, description, status and priority of card c.ID.
// With a non-nil owner only that user's card can match, and no match is
// ErrNotFound. Without an owner a missing id is not an error.
func (r *CardRepository) Update(ctx context.Context, c *models.Card, owner *int64) error {
	if c == nil {
		return errors.New("card is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `UPDATE cards SET title = ?, description = ?, status = ?, priority = ? WHERE id = ?`
	args := []any{c.Title, c.Description, c.Status, c.Priority, c.ID}
	q, args = scopeToOwner(q, args, owner)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return expectRow(res, c.ID, owner)
}

// Delete removes card id, scoped like Update.
func (r *CardRepository) Delete(ctx context.Context, id int64, owner *int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q, args := scopeToOwner(`DELETE FROM cards WHERE id = ?`, []any{id}, owner)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return expectRow(res, id, owner)
}

func scopeToOwner(q string, args []any, owner *int64) (string, []any) {
	if owner == nil {
		return q, args
	}
	return q + ` AND user_id = ?`, append(args, *owner)
}

func expectRow(res sql.Result, id int64, owner *int64) error {
	if owner == nil {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	return nil
}
