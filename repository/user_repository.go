package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"kanbanBackend/models"
)

const queryTimeout = 3 * time.Second

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. u.Password must already be hashed.
// A taken username yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u == nil {
		return nil, errors.New("user is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO users (username, email, password) VALUES (?, ?, ?)`,
		u.Username, u.Email, u.Password)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", u.Username, ErrDuplicate)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *u
	out.ID = id
	return &out, nil
}

// GetByUsername returns nil, nil when no user has that username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u models.User
	err := r.db.QueryRowContext(ctx, `SELECT id, username, email, password FROM users WHERE username = ?`, username).Scan(&u.ID, &u.Username, &u.Email, &u.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
