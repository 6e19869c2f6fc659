package account

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/auth"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/members"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/provision"
	"github.com/wolfeidau/taskflow/internal/store"
	storemem "github.com/wolfeidau/taskflow/internal/store/memory"
	"github.com/wolfeidau/taskflow/internal/tenant"
	"github.com/wolfeidau/taskflow/internal/tenant/memory"
)

type fixture struct {
	stores store.Stores
	codec  *auth.TokenCodec
	svc    *Service
	orch   *provision.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
	})
	require.NoError(t, err)

	stores := storemem.NewStores()
	return &fixture{
		stores: stores,
		codec:  codec,
		svc:    NewService(stores, codec, TTLs{}),
		orch:   provision.NewOrchestrator(stores, tenant.NewRegistry(memory.NewConnector()), tenant.DefaultCatalog),
	}
}

func (f *fixture) register(t *testing.T, email, org string) *provision.Registration {
	t.Helper()
	reg, err := f.orch.Register(context.Background(), provision.RegisterInput{
		Name: email, Email: email, Password: "hunter22", OrgName: org,
	})
	require.NoError(t, err)
	return reg
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues tokens for the current organization", func(t *testing.T) {
		f := newFixture(t)
		reg := f.register(t, "alice@example.com", "Acme Inc")

		sess, err := f.svc.Login(ctx, "ALICE@example.com", "hunter22")
		require.NoError(t, err)
		require.Equal(t, reg.Organization.ID, sess.Organization.ID)
		require.Equal(t, models.RoleOwner, sess.Role)

		claims, err := f.codec.Verify(sess.AccessToken)
		require.NoError(t, err)
		require.Equal(t, reg.Organization.ID.String(), claims.OrgID)

		refresh, err := f.codec.VerifyRefresh(sess.RefreshToken)
		require.NoError(t, err)
		require.Empty(t, refresh.OrgID)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice@example.com", "Acme Inc")

		_, wrong := f.svc.Login(ctx, "alice@example.com", "nope")
		_, unknown := f.svc.Login(ctx, "mallory@example.com", "nope")

		require.True(t, errs.Is(wrong, errs.Unauthorized))
		require.True(t, errs.Is(unknown, errs.Unauthorized))
		require.Equal(t, errs.Message(wrong), errs.Message(unknown))
	})

	t.Run("accepts pending invitations", func(t *testing.T) {
		f := newFixture(t)
		alice := f.register(t, "alice@example.com", "Acme Inc")
		bob := f.register(t, "bob@example.com", "Globex")

		_, err := members.NewService(f.stores.Users, f.stores.Memberships).
			Invite(ctx, alice.Organization.ID, alice.User.ID, "bob@example.com", models.RoleAdmin)
		require.NoError(t, err)

		sess, err := f.svc.Login(ctx, "bob@example.com", "hunter22")
		require.NoError(t, err)
		require.Equal(t, bob.Organization.ID, sess.Organization.ID)

		m, err := f.stores.Memberships.Get(ctx, bob.User.ID, alice.Organization.ID)
		require.NoError(t, err)
		require.Equal(t, models.MembershipAccepted, m.Status)
		require.NotNil(t, m.JoinedAt)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := f.register(t, "alice@example.com", "Acme Inc")

	sess, err := f.svc.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)

	t.Run("reissues access token", func(t *testing.T) {
		refreshed, err := f.svc.Refresh(ctx, sess.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, reg.Organization.ID, refreshed.Organization.ID)

		_, err = f.codec.Verify(refreshed.AccessToken)
		require.NoError(t, err)
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, sess.AccessToken)
		require.True(t, errs.Is(err, errs.Unauthorized))
	})

	t.Run("removed membership is not renewed", func(t *testing.T) {
		require.NoError(t, f.stores.Memberships.Delete(ctx, reg.User.ID, reg.Organization.ID))

		_, err := f.svc.Refresh(ctx, sess.RefreshToken)
		require.True(t, errs.Is(err, errs.Forbidden))
	})
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice@example.com", "Acme Inc")
	bob := f.register(t, "bob@example.com", "Globex")

	_, err := members.NewService(f.stores.Users, f.stores.Memberships).
		Invite(ctx, bob.Organization.ID, bob.User.ID, "alice@example.com", models.RoleMember)
	require.NoError(t, err)

	identity := &auth.Identity{UserID: alice.User.ID, Email: alice.User.Email, OrgID: alice.Organization.ID}

	t.Run("pending membership cannot be switched to", func(t *testing.T) {
		_, err := f.svc.Switch(ctx, identity, bob.Organization.ID)
		require.True(t, errs.Is(err, errs.Forbidden))
	})

	t.Run("switches after accepting", func(t *testing.T) {
		_, err := f.svc.Login(ctx, "alice@example.com", "hunter22")
		require.NoError(t, err)

		sess, err := f.svc.Switch(ctx, identity, bob.Organization.ID)
		require.NoError(t, err)
		require.Equal(t, models.RoleMember, sess.Role)
		require.Equal(t, bob.Organization.ID, sess.Organization.ID)

		user, err := f.stores.Users.Get(ctx, alice.User.ID)
		require.NoError(t, err)
		require.Equal(t, bob.Organization.ID, *user.CurrentOrgID)
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := f.svc.Switch(ctx, identity, uuid.Must(uuid.NewV7()))
		require.True(t, errs.Is(err, errs.Forbidden))
	})
}

func TestMe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := f.register(t, "alice@example.com", "Acme Inc")

	sess, err := f.svc.Me(ctx, &auth.Identity{UserID: reg.User.ID, OrgID: reg.Organization.ID}, models.RoleOwner)
	require.NoError(t, err)
	require.Equal(t, reg.User.Email, sess.User.Email)
	require.Equal(t, reg.Organization.Slug, sess.Organization.Slug)
	require.Equal(t, models.RoleOwner, sess.Role)
}
