package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

const membershipColumns = `user_id, org_id, role, status, invited_by, invited_at, joined_at, created_at`

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func scanMembership(row pgx.Row) (*models.Membership, error) {
	var (
		m      models.Membership
		role   string
		status string
	)
	err := row.Scan(
		&m.UserID,
		&m.OrgID,
		&role,
		&status,
		&m.InvitedBy,
		&m.InvitedAt,
		&m.JoinedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.Status = models.MembershipStatus(status)
	return &m, nil
}

func collectMemberships(rows pgx.Rows) ([]*models.Membership, error) {
	defer rows.Close()

	var result []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", mapPostgresError(err))
	}

	return result, nil
}

// Create inserts a membership.
func (s *MembershipStore) Create(ctx context.Context, m *models.Membership) error {
	query := `INSERT INTO memberships (` + membershipColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		m.UserID,
		m.OrgID,
		string(m.Role),
		string(m.Status),
		m.InvitedBy,
		m.InvitedAt,
		m.JoinedAt,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("user_id", m.UserID.String()).
		Str("org_id", m.OrgID.String()).
		Str("role", m.Role.String()).
		Str("status", string(m.Status)).
		Msg("Created membership")

	return nil
}

// Get retrieves the membership for a user in an organization.
func (s *MembershipStore) Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1 AND org_id = $2`

	m, err := scanMembership(s.pool.QueryRow(ctx, query, userID, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", mapPostgresError(err))
	}
	return m, nil
}

// ListByOrg returns the memberships of an organization.
func (s *MembershipStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", mapPostgresError(err))
	}
	return collectMemberships(rows)
}

// ListByUser returns the memberships held by a user.
func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", mapPostgresError(err))
	}
	return collectMemberships(rows)
}

// AcceptPending accepts every pending invitation of the user.
func (s *MembershipStore) AcceptPending(ctx context.Context, userID uuid.UUID, joinedAt time.Time) ([]*models.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE memberships SET status = 'ACCEPTED', joined_at = $2
		WHERE user_id = $1 AND status = 'PENDING'
		RETURNING `+membershipColumns,
		userID, joinedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to accept memberships: %w", mapPostgresError(err))
	}

	accepted, err := collectMemberships(rows)
	if err != nil {
		return nil, err
	}

	if len(accepted) > 0 {
		log.Debug().
			Str("user_id", userID.String()).
			Int("count", len(accepted)).
			Msg("Accepted pending memberships")
	}

	return accepted, nil
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, userID, orgID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	return nil
}

// NewStores builds the global stores on a shared pool.
func NewStores(pool *pgxpool.Pool) store.Stores {
	return store.Stores{
		Users:         NewUserStore(pool),
		Organizations: NewOrganizationStore(pool),
		Memberships:   NewMembershipStore(pool),
	}
}
