package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()

	t.Run("email lookup is case insensitive", func(t *testing.T) {
		st := NewUserStore()
		user := &models.User{ID: uuid.Must(uuid.NewV7()), Email: "Alice@Example.com", Name: "Alice"}
		require.NoError(t, st.Create(ctx, user))

		got, err := st.GetByEmail(ctx, "alice@example.COM")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		st := NewUserStore()
		require.NoError(t, st.Create(ctx, &models.User{ID: uuid.Must(uuid.NewV7()), Email: "alice@example.com"}))

		err := st.Create(ctx, &models.User{ID: uuid.Must(uuid.NewV7()), Email: "ALICE@example.com"})
		require.ErrorIs(t, err, store.ErrUserAlreadyExists)
	})

	t.Run("set current org", func(t *testing.T) {
		st := NewUserStore()
		user := &models.User{ID: uuid.Must(uuid.NewV7()), Email: "bob@example.com"}
		require.NoError(t, st.Create(ctx, user))

		orgID := uuid.Must(uuid.NewV7())
		require.NoError(t, st.SetCurrentOrg(ctx, user.ID, orgID))

		got, err := st.Get(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentOrgID)
		require.Equal(t, orgID, *got.CurrentOrgID)

		require.ErrorIs(t, st.SetCurrentOrg(ctx, uuid.Must(uuid.NewV7()), orgID), store.ErrUserNotFound)
	})

	t.Run("delete frees the email", func(t *testing.T) {
		st := NewUserStore()
		user := &models.User{ID: uuid.Must(uuid.NewV7()), Email: "carol@example.com"}
		require.NoError(t, st.Create(ctx, user))
		require.NoError(t, st.Delete(ctx, user.ID))

		_, err := st.GetByEmail(ctx, "carol@example.com")
		require.ErrorIs(t, err, store.ErrUserNotFound)
		require.ErrorIs(t, st.Delete(ctx, user.ID), store.ErrUserNotFound)
	})
}
