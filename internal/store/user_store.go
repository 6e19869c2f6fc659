package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserStore defines the interface for user storage operations.
type UserStore interface {
	// Create stores a new user. Returns ErrUserAlreadyExists if the ID or email is taken.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email, compared case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// SetCurrentOrg updates the user's current organization pointer.
	SetCurrentOrg(ctx context.Context, userID, orgID uuid.UUID) error

	// Delete removes a user. Returns ErrUserNotFound if the user doesn't exist.
	Delete(ctx context.Context, userID uuid.UUID) error
}
