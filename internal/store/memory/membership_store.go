package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

type membershipKey struct {
	userID uuid.UUID
	orgID  uuid.UUID
}

// MembershipStore implements store.MembershipStore using in-memory storage.
type MembershipStore struct {
	mu sync.RWMutex

	memberships map[membershipKey]*models.Membership
}

// NewMembershipStore creates a new in-memory membership store.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		memberships: make(map[membershipKey]*models.Membership),
	}
}

func cloneMembership(m *models.Membership) *models.Membership {
	clone := *m
	if m.InvitedBy != nil {
		id := *m.InvitedBy
		clone.InvitedBy = &id
	}
	if m.JoinedAt != nil {
		t := *m.JoinedAt
		clone.JoinedAt = &t
	}
	return &clone
}

func sortByCreated(list []*models.Membership) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// Create stores a new membership.
func (s *MembershipStore) Create(ctx context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{userID: m.UserID, orgID: m.OrgID}
	if _, exists := s.memberships[key]; exists {
		return store.ErrMembershipAlreadyExists
	}

	s.memberships[key] = cloneMembership(m)
	return nil
}

// Get retrieves the membership for a user in an organization.
func (s *MembershipStore) Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.memberships[membershipKey{userID: userID, orgID: orgID}]
	if !exists {
		return nil, store.ErrMembershipNotFound
	}

	return cloneMembership(m), nil
}

// ListByOrg returns the memberships of an organization.
func (s *MembershipStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Membership
	for key, m := range s.memberships {
		if key.orgID == orgID {
			result = append(result, cloneMembership(m))
		}
	}
	sortByCreated(result)

	return result, nil
}

// ListByUser returns the memberships held by a user.
func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Membership
	for key, m := range s.memberships {
		if key.userID == userID {
			result = append(result, cloneMembership(m))
		}
	}
	sortByCreated(result)

	return result, nil
}

// AcceptPending accepts every pending invitation of the user.
func (s *MembershipStore) AcceptPending(ctx context.Context, userID uuid.UUID, joinedAt time.Time) ([]*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted []*models.Membership
	for key, m := range s.memberships {
		if key.userID != userID || m.Status != models.MembershipPending {
			continue
		}
		t := joinedAt
		m.Status = models.MembershipAccepted
		m.JoinedAt = &t
		accepted = append(accepted, cloneMembership(m))
	}
	sortByCreated(accepted)

	return accepted, nil
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, userID, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{userID: userID, orgID: orgID}
	if _, exists := s.memberships[key]; !exists {
		return store.ErrMembershipNotFound
	}

	delete(s.memberships, key)
	return nil
}

// NewStores returns a fresh set of in-memory global stores.
func NewStores() store.Stores {
	return store.Stores{
		Users:         NewUserStore(),
		Organizations: NewOrganizationStore(),
		Memberships:   NewMembershipStore(),
	}
}
