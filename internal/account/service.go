// Package account handles sign-in and the current organization of a user.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/auth"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

const msgInvalidCredentials = "invalid credentials"

// Session is a signed-in user acting in one organization.
type Session struct {
	User         *models.User
	Organization *models.Organization
	Role         models.Role
	AccessToken  string
	RefreshToken string
}

// TTLs sets token lifetimes. Zero values use the codec defaults.
type TTLs struct {
	Access  time.Duration
	Refresh time.Duration
}

type Service struct {
	stores store.Stores
	codec  *auth.TokenCodec
	ttls   TTLs
	now    func() time.Time
}

func NewService(stores store.Stores, codec *auth.TokenCodec, ttls TTLs) *Service {
	if ttls.Access == 0 {
		ttls.Access = auth.DefaultAccessTTL
	}
	if ttls.Refresh == 0 {
		ttls.Refresh = auth.DefaultRefreshTTL
	}
	return &Service{
		stores: stores,
		codec:  codec,
		ttls:   ttls,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TTLs returns the effective token lifetimes, used for cookie max-age.
func (s *Service) TTLs() TTLs {
	return s.ttls
}

// Login checks the password, accepts any pending invitations and opens a
// session in the user's current organization. Unknown emails and wrong
// passwords fail the same way and take the same time.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			auth.SpendPasswordCheck(password)
			return nil, errs.New(errs.Unauthorized, msgInvalidCredentials)
		}
		return nil, storeError(err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, errs.New(errs.Unauthorized, msgInvalidCredentials)
	}

	accepted, err := s.stores.Memberships.AcceptPending(ctx, user.ID, s.now())
	if err != nil {
		return nil, storeError(err)
	}
	if len(accepted) > 0 {
		log.Info().Str("user_id", user.ID.String()).Int("count", len(accepted)).Msg("Accepted pending invitations")
	}

	orgID, err := s.currentOrg(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.Start(ctx, user, orgID)
}

// Start opens a session for user in orgID with both an access and a refresh
// token. Register uses it directly after provisioning.
func (s *Service) Start(ctx context.Context, user *models.User, orgID uuid.UUID) (*Session, error) {
	sess, err := s.open(ctx, user, orgID)
	if err != nil {
		return nil, err
	}
	sess.RefreshToken, err = s.codec.IssueRefresh(identityOf(user, uuid.Nil), s.ttls.Refresh)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Refresh issues a new access token from a refresh token. The user and their
// membership are reloaded so revoked access is not renewed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, errs.Wrap(errs.Unauthorized, "authentication required", err)
	}
	userID, _ := claims.UserID()

	user, err := s.stores.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, errs.Wrap(errs.Unauthorized, "authentication required", err)
		}
		return nil, storeError(err)
	}

	orgID, err := s.currentOrg(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, user, orgID)
}

// Switch moves the user's current organization to orgID, which needs an
// accepted membership, and issues an access token for it.
func (s *Service) Switch(ctx context.Context, identity *auth.Identity, orgID uuid.UUID) (*Session, error) {
	user, err := s.stores.Users.Get(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, errs.Wrap(errs.Unauthorized, "authentication required", err)
		}
		return nil, storeError(err)
	}

	sess, err := s.open(ctx, user, orgID)
	if err != nil {
		return nil, err
	}

	if err := s.stores.Users.SetCurrentOrg(ctx, user.ID, orgID); err != nil {
		return nil, storeError(err)
	}
	user.CurrentOrgID = &orgID

	return sess, nil
}

// Me describes the caller in their token's organization.
func (s *Service) Me(ctx context.Context, identity *auth.Identity, role models.Role) (*Session, error) {
	user, err := s.stores.Users.Get(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, errs.Wrap(errs.NotFound, "user not found", err)
		}
		return nil, storeError(err)
	}
	org, err := s.organization(ctx, identity.OrgID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Organization: org, Role: role}, nil
}

// currentOrg returns the user's current organization, falling back to the
// oldest accepted membership when none is set.
func (s *Service) currentOrg(ctx context.Context, user *models.User) (uuid.UUID, error) {
	if user.CurrentOrgID != nil {
		return *user.CurrentOrgID, nil
	}

	memberships, err := s.stores.Memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return uuid.Nil, storeError(err)
	}
	for _, m := range memberships {
		if !m.IsAccepted() {
			continue
		}
		if err := s.stores.Users.SetCurrentOrg(ctx, user.ID, m.OrgID); err != nil {
			return uuid.Nil, storeError(err)
		}
		orgID := m.OrgID
		user.CurrentOrgID = &orgID
		return orgID, nil
	}
	return uuid.Nil, errs.New(errs.Forbidden, "no organization")
}

// open checks the membership in orgID and issues an access token for it.
func (s *Service) open(ctx context.Context, user *models.User, orgID uuid.UUID) (*Session, error) {
	m, err := s.stores.Memberships.Get(ctx, user.ID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return nil, errs.Wrap(errs.Forbidden, "no access to organization", err)
		}
		return nil, storeError(err)
	}
	if !m.IsAccepted() {
		return nil, errs.New(errs.Forbidden, "membership not accepted")
	}

	org, err := s.organization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	access, err := s.codec.IssueAccess(identityOf(user, orgID), orgID, m.Role, s.ttls.Access)
	if err != nil {
		return nil, err
	}

	return &Session{User: user, Organization: org, Role: m.Role, AccessToken: access}, nil
}

func (s *Service) organization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.stores.Organizations.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, errs.Wrap(errs.NotFound, "organization not found", err)
		}
		return nil, storeError(err)
	}
	return org, nil
}

func identityOf(user *models.User, orgID uuid.UUID) auth.Identity {
	return auth.Identity{UserID: user.ID, Email: user.Email, OrgID: orgID}
}

func storeError(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return errs.Wrap(errs.UpstreamUnavailable, "global store unavailable", err)
	}
	return err
}
