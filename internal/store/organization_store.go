package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
)

// OrganizationStore defines the interface for organization storage operations.
type OrganizationStore interface {
	// Create creates a new organization in the store.
	// Returns ErrOrganizationAlreadyExists if the ID, slug or database address is taken.
	Create(ctx context.Context, org *models.Organization) error

	// Get retrieves an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// GetBySlug retrieves an organization by its slug.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// Delete deletes an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Delete(ctx context.Context, orgID uuid.UUID) error

	// ListByOwner returns all organizations owned by a user, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Organization, error)
}
