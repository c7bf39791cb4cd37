package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kanbanBackend/models"
	"kanbanBackend/repository"
)

// CardInput carries the editable fields of a card. All four are required.
type CardInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
}

func (in CardInput) validate() error {
	if in.Title == "" || in.Description == "" || in.Status == "" || in.Priority == "" {
		return fmt.Errorf("%w: title, description, status and priority are required", ErrInvalidInput)
	}
	return nil
}

// Scope identifies the caller of a card mutation. With OwnerOnly set the
// mutation only matches cards owned by UserID.
type Scope struct {
	UserID    int64
	OwnerOnly bool
}

func (s Scope) owner() *int64 {
	if !s.OwnerOnly {
		return nil
	}
	id := s.UserID
	return &id
}

// CardService implements card CRUD for authenticated users.
type CardService struct {
	cards  repository.CardRepositoryI
	logger *slog.Logger
}

// NewCardService wires a CardService.
func NewCardService(cards repository.CardRepositoryI, logger *slog.Logger) *CardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardService{cards: cards, logger: logger}
}

// List returns every card owned by userID.
func (s *CardService) List(ctx context.Context, userID int64) ([]models.Card, error) {
	cards, err := s.cards.ListByOwner(ctx, userID)
	if err != nil {
		return nil, storeErr("list cards", err)
	}
	return cards, nil
}

// Create stores a card owned by userID and returns its id.
func (s *CardService) Create(ctx context.Context, userID int64, in CardInput) (int64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	c, err := s.cards.Create(ctx, &models.Card{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		UserID:      userID,
	})
	if err != nil {
		return 0, storeErr("create card", err)
	}
	return c.ID, nil
}

// Update overwrites card id and returns the id.
func (s *CardService) Update(ctx context.Context, scope Scope, id int64, in CardInput) (int64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return 0, err
	}
	err := s.cards.Update(ctx, &models.Card{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
	}, scope.owner())
	if err != nil {
		return 0, s.mutationErr("update card", id, scope, err)
	}
	return id, nil
}

// Delete removes card id and returns the id.
func (s *CardService) Delete(ctx context.Context, scope Scope, id int64) (int64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := s.cards.Delete(ctx, id, scope.owner()); err != nil {
		return 0, s.mutationErr("delete card", id, scope, err)
	}
	return id, nil
}

func (s *CardService) mutationErr(op string, id int64, scope Scope, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug(op+": no matching card", "card_id", id, "user_id", scope.UserID, "owner_only", scope.OwnerOnly)
		return fmt.Errorf("%s %d: %w", op, id, ErrNotFound)
	}
	return storeErr(op, err)
}
