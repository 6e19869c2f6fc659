// Package tracker stores projects and tasks in an organization's tenant store.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

// repo maps one entity type onto a tenant collection as JSON documents.
type repo[T any] struct {
	col      tenant.Collection
	notFound string
}

func (r repo[T]) encode(id uuid.UUID, v *T, created, updated time.Time) (tenant.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return tenant.Document{}, fmt.Errorf("encode %s: %w", r.col.Schema().Name, err)
	}
	return tenant.Document{ID: id, Data: data, CreatedAt: created, UpdatedAt: updated}, nil
}

func (r repo[T]) insert(ctx context.Context, id uuid.UUID, v *T, created time.Time) error {
	doc, err := r.encode(id, v, created, created)
	if err != nil {
		return err
	}
	if err := r.col.Insert(ctx, doc); err != nil {
		return r.wrap(err)
	}
	return nil
}

func (r repo[T]) replace(ctx context.Context, id uuid.UUID, v *T, created, updated time.Time) error {
	doc, err := r.encode(id, v, created, updated)
	if err != nil {
		return err
	}
	if err := r.col.Replace(ctx, doc); err != nil {
		return r.wrap(err)
	}
	return nil
}

func (r repo[T]) delete(ctx context.Context, id uuid.UUID) error {
	if err := r.col.Delete(ctx, id); err != nil {
		return r.wrap(err)
	}
	return nil
}

func (r repo[T]) decode(doc tenant.Document) (*T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", r.col.Schema().Name, doc.ID, err)
	}
	return &v, nil
}

func (r repo[T]) get(ctx context.Context, id uuid.UUID) (*T, error) {
	doc, err := r.col.Get(ctx, id)
	if err != nil {
		return nil, r.wrap(err)
	}
	return r.decode(doc)
}

func (r repo[T]) find(ctx context.Context, filter tenant.Filter) ([]*T, error) {
	docs, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, r.wrap(err)
	}
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r repo[T]) wrap(err error) error {
	switch {
	case errors.Is(err, tenant.ErrDocumentNotFound):
		return errs.Wrap(errs.NotFound, r.notFound, err)
	case errors.Is(err, tenant.ErrDocumentExists):
		return errs.Wrap(errs.Conflict, "document already exists", err)
	case errors.Is(err, tenant.ErrUnknownField):
		return errs.Wrap(errs.Invalid, "unsupported filter", err)
	default:
		return errs.Wrap(errs.UpstreamUnavailable, "tenant store unavailable", err)
	}
}
