package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

type docCollection struct {
	pool   *pgxpool.Pool
	schema tenant.Schema
	table  string // sanitized
}

func (c *docCollection) Schema() tenant.Schema {
	return c.schema
}

func (c *docCollection) where(filter tenant.Filter) (string, []any, error) {
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
	for i, field := range fields {
		clauses = append(clauses, fmt.Sprintf("doc->>'%s' = $%d", field, i+1))
		args = append(args, filter[field])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanDocument(row pgx.Row) (tenant.Document, error) {
	var doc tenant.Document
	var data []byte
	if err := row.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return tenant.Document{}, err
	}
	doc.Data = data
	return doc, nil
}

func (c *docCollection) Insert(ctx context.Context, doc tenant.Document) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO `+c.table+` (id, doc, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		doc.ID, []byte(doc.Data), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return tenant.ErrDocumentExists
		}
		return fmt.Errorf("insert into %s: %w", c.schema.Table, err)
	}
	return nil
}

func (c *docCollection) Get(ctx context.Context, id uuid.UUID) (tenant.Document, error) {
	doc, err := scanDocument(c.pool.QueryRow(ctx,
		`SELECT id, doc, created_at, updated_at FROM `+c.table+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.Document{}, tenant.ErrDocumentNotFound
		}
		return tenant.Document{}, fmt.Errorf("get from %s: %w", c.schema.Table, err)
	}
	return doc, nil
}

func (c *docCollection) Find(ctx context.Context, filter tenant.Filter) ([]tenant.Document, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx,
		`SELECT id, doc, created_at, updated_at FROM `+c.table+where+` ORDER BY created_at, id`, args...)
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

func (c *docCollection) Replace(ctx context.Context, doc tenant.Document) error {
	result, err := c.pool.Exec(ctx,
		`UPDATE `+c.table+` SET doc = $2, updated_at = $3 WHERE id = $1`,
		doc.ID, []byte(doc.Data), doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("replace in %s: %w", c.schema.Table, err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrDocumentNotFound
	}
	return nil
}

func (c *docCollection) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := c.pool.Exec(ctx, `DELETE FROM `+c.table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", c.schema.Table, err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrDocumentNotFound
	}
	return nil
}

func (c *docCollection) DeleteWhere(ctx context.Context, filter tenant.Filter) (int, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return 0, err
	}

	result, err := c.pool.Exec(ctx, `DELETE FROM `+c.table+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.schema.Table, err)
	}
	return int(result.RowsAffected()), nil
}
