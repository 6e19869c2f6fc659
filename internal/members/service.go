// Package members manages who belongs to an organization.
package members

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

// Member is a membership joined with the user it belongs to.
type Member struct {
	UserID    uuid.UUID               `json:"user_id"`
	Email     string                  `json:"email"`
	Name      string                  `json:"name"`
	Role      models.Role             `json:"role"`
	Status    models.MembershipStatus `json:"status"`
	InvitedAt time.Time               `json:"invited_at"`
	JoinedAt  *time.Time              `json:"joined_at,omitempty"`
}

type Service struct {
	users       store.UserStore
	memberships store.MembershipStore
	now         func() time.Time
}

func NewService(users store.UserStore, memberships store.MembershipStore) *Service {
	return &Service{
		users:       users,
		memberships: memberships,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Invite adds an existing user to orgID as a PENDING member. The role defaults
// to MEMBER; OWNER cannot be granted by invitation.
func (s *Service) Invite(ctx context.Context, orgID, invitedBy uuid.UUID, email string, role models.Role) (*models.Membership, error) {
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleAdmin {
		return nil, errs.New(errs.Invalid, "role must be ADMIN or MEMBER")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errs.New(errs.Invalid, "email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, errs.Wrap(errs.NotFound, "user not found", err)
		}
		return nil, storeError(err)
	}

	now := s.now()
	inviter := invitedBy
	m := &models.Membership{
		UserID:    user.ID,
		OrgID:     orgID,
		Role:      role,
		Status:    models.MembershipPending,
		InvitedBy: &inviter,
		InvitedAt: now,
		CreatedAt: now,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		if errors.Is(err, store.ErrMembershipAlreadyExists) {
			return nil, errs.Wrap(errs.Conflict, "user is already a member", err)
		}
		return nil, storeError(err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("user_id", user.ID.String()).
		Str("role", role.String()).
		Msg("Invited member")

	return m, nil
}

// List returns every membership of orgID with its user, oldest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	memberships, err := s.memberships.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		user, err := s.users.Get(ctx, m.UserID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				continue
			}
			return nil, storeError(err)
		}
		out = append(out, Member{
			UserID:    user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Role:      m.Role,
			Status:    m.Status,
			InvitedAt: m.InvitedAt,
			JoinedAt:  m.JoinedAt,
		})
	}
	return out, nil
}

// RequireAccepted fails with Invalid unless userID is an accepted member of orgID.
func (s *Service) RequireAccepted(ctx context.Context, orgID, userID uuid.UUID) error {
	m, err := s.memberships.Get(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return errs.Wrap(errs.Invalid, "assignee is not a member of the organization", err)
		}
		return storeError(err)
	}
	if !m.IsAccepted() {
		return errs.New(errs.Invalid, "assignee is not a member of the organization")
	}
	return nil
}

func storeError(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return errs.Wrap(errs.UpstreamUnavailable, "global store unavailable", err)
	}
	return err
}
