package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store/memory"
)

type gateFixture struct {
	gate        *Gate
	codec       *TokenCodec
	memberships *memory.MembershipStore
	orgID       uuid.UUID
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	codec := newTestCodec(t)
	memberships := memory.NewMembershipStore()
	return &gateFixture{
		gate:        NewGate(codec, memberships),
		codec:       codec,
		memberships: memberships,
		orgID:       uuid.Must(uuid.NewV7()),
	}
}

func (f *gateFixture) member(t *testing.T, role models.Role, status models.MembershipStatus) Identity {
	t.Helper()
	identity := testIdentity()
	now := time.Now().UTC()
	require.NoError(t, f.memberships.Create(context.Background(), &models.Membership{
		UserID:    identity.UserID,
		OrgID:     f.orgID,
		Role:      role,
		Status:    status,
		InvitedAt: now,
		CreatedAt: now,
	}))
	identity.OrgID = f.orgID
	return identity
}

func TestGateAuthenticate(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		identity := testIdentity()
		token, err := f.codec.IssueAccess(identity, f.orgID, models.RoleMember, 0)
		require.NoError(t, err)

		got, err := f.gate.Authenticate(ctx, token)
		require.NoError(t, err)
		require.Equal(t, identity.UserID, got.UserID)
		require.Equal(t, f.orgID, got.OrgID)
	})

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"missing", func(*testing.T) string { return "" }},
		{"garbage", func(*testing.T) string { return "not-a-jwt" }},
		{"refresh token", func(t *testing.T) string {
			token, err := f.codec.IssueRefresh(testIdentity(), 0)
			require.NoError(t, err)
			return token
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gate.Authenticate(ctx, tt.token(t))
			require.True(t, errs.Is(err, errs.Unauthorized))
			require.Equal(t, msgUnauthorized, errs.Message(err))
		})
	}
}

func TestGateAuthorizeRole(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		role    models.Role
		status  models.MembershipStatus
		min     models.Role
		message string
	}{
		{"owner passes admin", models.RoleOwner, models.MembershipAccepted, models.RoleAdmin, ""},
		{"admin passes admin", models.RoleAdmin, models.MembershipAccepted, models.RoleAdmin, ""},
		{"member passes member", models.RoleMember, models.MembershipAccepted, models.RoleMember, ""},
		{"member fails admin", models.RoleMember, models.MembershipAccepted, models.RoleAdmin, "insufficient role"},
		{"admin fails owner", models.RoleAdmin, models.MembershipAccepted, models.RoleOwner, "insufficient role"},
		{"pending owner never passes", models.RoleOwner, models.MembershipPending, models.RoleMember, "membership not accepted"},
		{"pending member never passes", models.RoleMember, models.MembershipPending, models.RoleMember, "membership not accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture(t)
			identity := f.member(t, tt.role, tt.status)

			role, err := f.gate.AuthorizeRole(ctx, &identity, f.orgID, tt.min)
			if tt.message == "" {
				require.NoError(t, err)
				require.Equal(t, tt.role, role)
				return
			}
			require.True(t, errs.Is(err, errs.Forbidden))
			require.Equal(t, tt.message, errs.Message(err))
		})
	}

	t.Run("no membership", func(t *testing.T) {
		f := newGateFixture(t)
		identity := testIdentity()

		_, err := f.gate.AuthorizeRole(ctx, &identity, f.orgID, models.RoleMember)
		require.True(t, errs.Is(err, errs.Forbidden))
		require.Equal(t, "no access to organization", errs.Message(err))
	})

	t.Run("role comes from the store not the token", func(t *testing.T) {
		f := newGateFixture(t)
		identity := f.member(t, models.RoleMember, models.MembershipAccepted)

		// token claims OWNER but the membership says MEMBER
		token, err := f.codec.IssueAccess(identity, f.orgID, models.RoleOwner, 0)
		require.NoError(t, err)
		authed, err := f.gate.Authenticate(ctx, token)
		require.NoError(t, err)

		_, err = f.gate.AuthorizeRole(ctx, authed, f.orgID, models.RoleAdmin)
		require.True(t, errs.Is(err, errs.Forbidden))
	})

	t.Run("no current organization", func(t *testing.T) {
		f := newGateFixture(t)
		identity := testIdentity()

		_, err := f.gate.AuthorizeRole(ctx, &identity, uuid.Nil, models.RoleMember)
		require.True(t, errs.Is(err, errs.Forbidden))
	})
}

func TestGateMiddleware(t *testing.T) {
	f := newGateFixture(t)
	admin := f.member(t, models.RoleAdmin, models.MembershipAccepted)
	pending := f.member(t, models.RoleOwner, models.MembershipPending)

	var gotIdentity *Identity
	var gotRole models.Role
	handler := f.gate.Middleware()(f.gate.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = IdentityFromContext(r.Context())
		gotRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	issue := func(t *testing.T, identity Identity) string {
		token, err := f.codec.IssueAccess(identity, identity.OrgID, models.RoleOwner, 0)
		require.NoError(t, err)
		return token
	}

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+issue(t, admin))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, admin.UserID, gotIdentity.UserID)
		require.Equal(t, models.RoleAdmin, gotRole)
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: issue(t, admin)})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("invalid bearer does not fall back to cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: issue(t, admin)})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.JSONEq(t, `{"error":"`+msgUnauthorized+`"}`, w.Body.String())
	})

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("pending membership is forbidden", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+issue(t, pending))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusForbidden, w.Code)
		require.JSONEq(t, `{"error":"membership not accepted"}`, w.Body.String())
	})
}
