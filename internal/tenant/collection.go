package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrUnknownField     = errors.New("field is not filterable")
)

// Document is one stored entity. Data holds the JSON encoding of the entity.
type Document struct {
	ID        uuid.UUID
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter matches documents whose top-level string fields equal the given values.
// Only fields declared in the collection's schema may be used.
type Filter map[string]string

// Collection is the bound accessor for one entity type inside one tenant store.
type Collection interface {
	Schema() Schema
	Insert(ctx context.Context, doc Document) error
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	// Find returns matching documents ordered by creation time.
	Find(ctx context.Context, filter Filter) ([]Document, error)
	Replace(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteWhere removes every matching document and returns how many were removed.
	DeleteWhere(ctx context.Context, filter Filter) (int, error)
}

// CheckFilter rejects filters naming fields the schema does not declare.
func (s Schema) CheckFilter(filter Filter) error {
	for field := range filter {
		if !s.filterable(field) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.Table, field)
		}
	}
	return nil
}

// Matches reports whether the JSON document satisfies filter. Backends without a
// native JSON query use it.
func Matches(data json.RawMessage, filter Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}

	for field, want := range filter {
		got, ok := fields[field].(string)
		if !ok || got != want {
			return false, nil
		}
	}
	return true, nil
}
