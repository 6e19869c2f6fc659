// Package tenanttest holds behaviour checks shared by every tenant store backend.
package tenanttest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

// OpenFunc opens a fresh, empty tenant store connection for one subtest.
type OpenFunc func(t *testing.T) tenant.Conn

func newDoc(t *testing.T, created time.Time, fields map[string]any) tenant.Document {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return tenant.Document{
		ID:        uuid.Must(uuid.NewV7()),
		Data:      data,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func bindTasks(t *testing.T, ctx context.Context, open OpenFunc) tenant.Collection {
	t.Helper()
	col, err := open(t).Bind(ctx, tenant.TaskSchema)
	require.NoError(t, err)
	return col
}

// RunCollectionSuite exercises the tenant.Collection contract against a backend.
func RunCollectionSuite(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("insert and get", func(t *testing.T) {
		col := bindTasks(t, ctx, open)
		doc := newDoc(t, base, map[string]any{"title": "write docs", "project_id": "p1"})

		require.NoError(t, col.Insert(ctx, doc))

		got, err := col.Get(ctx, doc.ID)
		require.NoError(t, err)
		require.Equal(t, doc.ID, got.ID)
		require.JSONEq(t, string(doc.Data), string(got.Data))
		require.WithinDuration(t, doc.CreatedAt, got.CreatedAt, time.Millisecond)

		require.ErrorIs(t, col.Insert(ctx, doc), tenant.ErrDocumentExists)
	})

	t.Run("get missing", func(t *testing.T) {
		col := bindTasks(t, ctx, open)
		_, err := col.Get(ctx, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, tenant.ErrDocumentNotFound)
	})

	t.Run("find filters on declared fields in creation order", func(t *testing.T) {
		col := bindTasks(t, ctx, open)
		for i := range 3 {
			doc := newDoc(t, base.Add(time.Duration(3-i)*time.Second), map[string]any{
				"title":      fmt.Sprintf("task %d", i),
				"project_id": "p1",
				"status":     "TODO",
			})
			require.NoError(t, col.Insert(ctx, doc))
		}
		require.NoError(t, col.Insert(ctx, newDoc(t, base, map[string]any{"project_id": "p2", "status": "TODO"})))

		docs, err := col.Find(ctx, tenant.Filter{"project_id": "p1"})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		for i := 1; i < len(docs); i++ {
			require.False(t, docs[i].CreatedAt.Before(docs[i-1].CreatedAt))
		}

		both, err := col.Find(ctx, tenant.Filter{"project_id": "p2", "status": "TODO"})
		require.NoError(t, err)
		require.Len(t, both, 1)

		all, err := col.Find(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 4)

		_, err = col.Find(ctx, tenant.Filter{"title": "task 1"})
		require.ErrorIs(t, err, tenant.ErrUnknownField)
	})

	t.Run("replace", func(t *testing.T) {
		col := bindTasks(t, ctx, open)
		doc := newDoc(t, base, map[string]any{"title": "draft", "status": "TODO"})
		require.NoError(t, col.Insert(ctx, doc))

		updated := newDoc(t, base, map[string]any{"title": "draft", "status": "DONE"})
		updated.ID = doc.ID
		updated.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, col.Replace(ctx, updated))

		done, err := col.Find(ctx, tenant.Filter{"status": "DONE"})
		require.NoError(t, err)
		require.Len(t, done, 1)
		require.WithinDuration(t, base, done[0].CreatedAt, time.Millisecond)
		require.WithinDuration(t, updated.UpdatedAt, done[0].UpdatedAt, time.Millisecond)

		missing := updated
		missing.ID = uuid.Must(uuid.NewV7())
		require.ErrorIs(t, col.Replace(ctx, missing), tenant.ErrDocumentNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		col := bindTasks(t, ctx, open)
		keep := newDoc(t, base, map[string]any{"project_id": "keep"})
		require.NoError(t, col.Insert(ctx, keep))
		for range 2 {
			require.NoError(t, col.Insert(ctx, newDoc(t, base, map[string]any{"project_id": "gone"})))
		}

		n, err := col.DeleteWhere(ctx, tenant.Filter{"project_id": "gone"})
		require.NoError(t, err)
		require.Equal(t, 2, n)

		require.NoError(t, col.Delete(ctx, keep.ID))
		require.ErrorIs(t, col.Delete(ctx, keep.ID), tenant.ErrDocumentNotFound)

		all, err := col.Find(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("binding twice keeps data", func(t *testing.T) {
		conn := open(t)
		first, err := conn.Bind(ctx, tenant.ProjectSchema)
		require.NoError(t, err)

		doc := newDoc(t, base, map[string]any{"name": "Launch", "status": "ACTIVE"})
		require.NoError(t, first.Insert(ctx, doc))

		second, err := conn.Bind(ctx, tenant.ProjectSchema)
		require.NoError(t, err)

		got, err := second.Get(ctx, doc.ID)
		require.NoError(t, err)
		require.Equal(t, doc.ID, got.ID)
	})
}
