package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
)

// Identity is the authenticated caller. OrgID is the organization the access
// token was issued for and may be uuid.Nil.
type Identity struct {
	UserID uuid.UUID
	Email  string
	OrgID  uuid.UUID
}

type contextKey int

const (
	identityContextKey contextKey = iota
	roleContextKey
)

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the identity stored by Gate.Middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

// WithRole stores the caller's verified membership role in ctx.
func WithRole(ctx context.Context, role models.Role) context.Context {
	return context.WithValue(ctx, roleContextKey, role)
}

// RoleFromContext returns the role stored by Gate.RequireRole.
func RoleFromContext(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(roleContextKey).(models.Role)
	return role, ok
}

func (i *Identity) orgOrNil() uuid.UUID {
	if i == nil {
		return uuid.Nil
	}
	return i.OrgID
}
