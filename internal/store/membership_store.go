package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
)

var (
	ErrMembershipNotFound      = errors.New("membership not found")
	ErrMembershipAlreadyExists = errors.New("membership already exists")
)

// MembershipStore defines the interface for organization membership storage.
// A membership is keyed by the (user, organization) pair.
type MembershipStore interface {
	// Create stores a new membership. Returns ErrMembershipAlreadyExists if the pair exists.
	Create(ctx context.Context, m *models.Membership) error

	// Get retrieves the membership for a user in an organization.
	Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error)

	// ListByOrg returns the memberships of an organization, oldest first.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error)

	// ListByUser returns the memberships held by a user, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)

	// AcceptPending marks every PENDING membership of the user as ACCEPTED with
	// the given join time and returns the memberships it changed.
	AcceptPending(ctx context.Context, userID uuid.UUID, joinedAt time.Time) ([]*models.Membership, error)

	// Delete removes a membership. Returns ErrMembershipNotFound if it doesn't exist.
	Delete(ctx context.Context, userID, orgID uuid.UUID) error
}
