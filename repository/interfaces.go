package repository

import (
	"context"
	"errors"

	"kanbanBackend/models"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned when an owner-scoped update or delete matched no row.
	ErrNotFound = errors.New("record not found")
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// CardRepositoryI defines operations on Card entities.
// A nil owner on Update and Delete matches the card by id alone and does not
// report a missing id.
type CardRepositoryI interface {
	Create(ctx context.Context, c *models.Card) (*models.Card, error)
	ListByOwner(ctx context.Context, userID int64) ([]models.Card, error)
	Update(ctx context.Context, c *models.Card, owner *int64) error
	Delete(ctx context.Context, id int64, owner *int64) error
}

var (
	_ UserRepositoryI = (*UserRepository)(nil)
	_ CardRepositoryI = (*CardRepository)(nil)
)
