package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
	"github.com/wolfeidau/taskflow/internal/telemetry"
)

// msgUnauthorized is the only message unauthenticated callers ever see.
const msgUnauthorized = "authentication required"

// Gate authenticates callers from their access token and authorizes them
// against their membership in the global store.
type Gate struct {
	codec       *TokenCodec
	memberships store.MembershipStore
	metrics     *telemetry.Metrics
}

func NewGate(codec *TokenCodec, memberships store.MembershipStore) *Gate {
	return &Gate{
		codec:       codec,
		memberships: memberships,
		metrics:     telemetry.GetMetrics(),
	}
}

// Authenticate verifies an access token and returns the identity it carries.
func (g *Gate) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, g.reject(ctx, errs.New(errs.Unauthorized, msgUnauthorized))
	}

	claims, err := g.codec.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("Access token rejected")
		return nil, g.reject(ctx, errs.Wrap(errs.Unauthorized, msgUnauthorized, err))
	}

	// Verify already checked both parse
	userID, _ := claims.UserID()
	orgID, _ := claims.Org()

	return &Identity{UserID: userID, Email: claims.Email, OrgID: orgID}, nil
}

// AuthorizeRole checks that identity holds an accepted membership in orgID of
// at least minRole and returns the stored role. The role in the token is
// never consulted.
func (g *Gate) AuthorizeRole(ctx context.Context, identity *Identity, orgID uuid.UUID, minRole models.Role) (models.Role, error) {
	if identity == nil {
		return "", g.reject(ctx, errs.New(errs.Unauthorized, msgUnauthorized))
	}
	if orgID == uuid.Nil {
		return "", g.reject(ctx, errs.New(errs.Forbidden, "no current organization"))
	}

	m, err := g.memberships.Get(ctx, identity.UserID, orgID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMembershipNotFound):
			return "", g.reject(ctx, errs.Wrap(errs.Forbidden, "no access to organization", err))
		case errors.Is(err, store.ErrUnavailable):
			return "", errs.Wrap(errs.UpstreamUnavailable, "global store unavailable", err)
		default:
			return "", err
		}
	}

	if !m.IsAccepted() {
		return "", g.reject(ctx, errs.New(errs.Forbidden, "membership not accepted"))
	}
	if !m.Role.AtLeast(minRole) {
		return "", g.reject(ctx, errs.New(errs.Forbidden, "insufficient role"))
	}

	return m.Role, nil
}

func (g *Gate) reject(ctx context.Context, err error) error {
	g.metrics.AuthFailuresTotal.Add(ctx, 1)
	return err
}
