// Package service holds the registration, login and card operations that sit
// between the HTTP transport and the repositories.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports a missing required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound reports an unknown username or card.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized reports a password that does not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStore wraps persistence failures.
	ErrStore = errors.New("store error")
	// ErrDuplicate reports a taken username; it matches ErrStore too.
	ErrDuplicate = fmt.Errorf("%w: duplicate username", ErrStore)
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}
