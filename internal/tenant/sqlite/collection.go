package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

type collection struct {
	db     *sql.DB
	schema tenant.Schema
}

func (c *collection) Schema() tenant.Schema {
	return c.schema
}

// where renders filter as a WHERE clause. Field names are checked against the
// schema before they are written into SQL.
func (c *collection) where(filter tenant.Filter) (string, []any, error) {
	if err := c.schema.CheckFilter(filter); err != nil {
		return "", nil, err
	}
	if len(filter) == 0 {
		return "", nil, nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	clauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		clauses = append(clauses, fmt.Sprintf("json_extract(doc, '$.%s') = ?", field))
		args = append(args, filter[field])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanDocument(row interface{ Scan(...any) error }) (tenant.Document, error) {
	var (
		doc       tenant.Document
		id        string
		data      string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
		return tenant.Document{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return tenant.Document{}, fmt.Errorf("parse document id: %w", err)
	}

	doc.ID = parsed
	doc.Data = []byte(data)
	doc.CreatedAt = time.UnixMicro(createdAt).UTC()
	doc.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return doc, nil
}

func (c *collection) Insert(ctx context.Context, doc tenant.Document) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`, c.schema.Table)

	_, err := c.db.ExecContext(ctx, query,
		doc.ID.String(), string(doc.Data), doc.CreatedAt.UnixMicro(), doc.UpdatedAt.UnixMicro())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return tenant.ErrDocumentExists
		}
		return fmt.Errorf("insert into %s: %w", c.schema.Table, err)
	}
	return nil
}

func (c *collection) Get(ctx context.Context, id uuid.UUID) (tenant.Document, error) {
	query := fmt.Sprintf(`SELECT id, doc, created_at, updated_at FROM %s WHERE id = ?`, c.schema.Table)

	doc, err := scanDocument(c.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tenant.Document{}, tenant.ErrDocumentNotFound
		}
		return tenant.Document{}, fmt.Errorf("get from %s: %w", c.schema.Table, err)
	}
	return doc, nil
}

func (c *collection) Find(ctx context.Context, filter tenant.Filter) ([]tenant.Document, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, doc, created_at, updated_at FROM %s%s ORDER BY created_at, id`, c.schema.Table, where)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.schema.Table, err)
	}
	defer rows.Close()

	var docs []tenant.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.schema.Table, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *collection) Replace(ctx context.Context, doc tenant.Document) error {
	query := fmt.Sprintf(`UPDATE %s SET doc = ?, updated_at = ? WHERE id = ?`, c.schema.Table)

	result, err := c.db.ExecContext(ctx, query, string(doc.Data), doc.UpdatedAt.UnixMicro(), doc.ID.String())
	if err != nil {
		return fmt.Errorf("replace in %s: %w", c.schema.Table, err)
	}
	return requireRow(result)
}

func (c *collection) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.schema.Table)

	result, err := c.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("delete from %s: %w", c.schema.Table, err)
	}
	return requireRow(result)
}

func (c *collection) DeleteWhere(ctx context.Context, filter tenant.Filter) (int, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return 0, err
	}

	result, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s%s`, c.schema.Table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.schema.Table, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tenant.ErrDocumentNotFound
	}
	return nil
}
