package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

func TestMembershipStore(t *testing.T) {
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV7())
	orgA := uuid.Must(uuid.NewV7())
	orgB := uuid.Must(uuid.NewV7())

	t.Run("pair is unique", func(t *testing.T) {
		st := NewMembershipStore()
		m := &models.Membership{UserID: userID, OrgID: orgA, Role: models.RoleMember, Status: models.MembershipPending}
		require.NoError(t, st.Create(ctx, m))
		require.ErrorIs(t, st.Create(ctx, m), store.ErrMembershipAlreadyExists)

		_, err := st.Get(ctx, userID, orgB)
		require.ErrorIs(t, err, store.ErrMembershipNotFound)
	})

	t.Run("accept pending only touches pending invites", func(t *testing.T) {
		st := NewMembershipStore()
		now := time.Now()
		require.NoError(t, st.Create(ctx, &models.Membership{
			UserID: userID, OrgID: orgA, Role: models.RoleAdmin, Status: models.MembershipPending, CreatedAt: now,
		}))
		require.NoError(t, st.Create(ctx, &models.Membership{
			UserID: userID, OrgID: orgB, Role: models.RoleOwner, Status: models.MembershipAccepted, CreatedAt: now.Add(time.Second),
		}))

		accepted, err := st.AcceptPending(ctx, userID, now)
		require.NoError(t, err)
		require.Len(t, accepted, 1)
		require.Equal(t, orgA, accepted[0].OrgID)

		got, err := st.Get(ctx, userID, orgA)
		require.NoError(t, err)
		require.True(t, got.IsAccepted())
		require.NotNil(t, got.JoinedAt)

		again, err := st.AcceptPending(ctx, userID, now)
		require.NoError(t, err)
		require.Empty(t, again)
	})

	t.Run("list by org and user", func(t *testing.T) {
		st := NewMembershipStore()
		other := uuid.Must(uuid.NewV7())
		require.NoError(t, st.Create(ctx, &models.Membership{UserID: userID, OrgID: orgA, Role: models.RoleOwner}))
		require.NoError(t, st.Create(ctx, &models.Membership{UserID: other, OrgID: orgA, Role: models.RoleMember}))
		require.NoError(t, st.Create(ctx, &models.Membership{UserID: userID, OrgID: orgB, Role: models.RoleMember}))

		byOrg, err := st.ListByOrg(ctx, orgA)
		require.NoError(t, err)
		require.Len(t, byOrg, 2)

		byUser, err := st.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, byUser, 2)
	})

	t.Run("delete", func(t *testing.T) {
		st := NewMembershipStore()
		require.NoError(t, st.Create(ctx, &models.Membership{UserID: userID, OrgID: orgA}))
		require.NoError(t, st.Delete(ctx, userID, orgA))
		require.ErrorIs(t, st.Delete(ctx, userID, orgA), store.ErrMembershipNotFound)
	})
}
