package server

import (
	"context"
	"net/http"

	"github.com/wolfeidau/taskflow/internal/auth"
	httpmiddleware "github.com/wolfeidau/taskflow/internal/http"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/tenant"
	"github.com/wolfeidau/taskflow/internal/tracker"
)

// Scope is the caller and the organization store a scoped request runs in.
type Scope struct {
	Identity *auth.Identity
	Role     models.Role
	Tenant   *tenant.Context
	Tracker  *tracker.Service
}

type contextKey int

const scopeContextKey contextKey = iota

// ScopeFromContext returns the scope stored by withTenant, or nil.
func ScopeFromContext(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeContextKey).(*Scope)
	return scope
}

// withTenant resolves the tenant store of the organization the caller was
// authorized for. It must run after Gate.RequireRole.
func (s *Server) withTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity := auth.IdentityFromContext(ctx)
		role, _ := auth.RoleFromContext(ctx)

		tc, err := s.resolver.Resolve(ctx, identity.OrgID)
		if err != nil {
			httpmiddleware.WriteError(w, r, err)
			return
		}

		scope := &Scope{
			Identity: identity,
			Role:     role,
			Tenant:   tc,
			Tracker:  tracker.New(tc.Accessors),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, scopeContextKey, scope)))
	})
}
