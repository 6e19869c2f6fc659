package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
// Slug and database address uniqueness are enforced the same way the postgres
// constraints enforce them. Data is lost on restart.
type OrganizationStore struct {
	mu sync.RWMutex

	organizations map[uuid.UUID]*models.Organization // org_id -> Organization
	slugs         map[string]uuid.UUID               // slug -> org_id
	addresses     map[string]uuid.UUID               // db_address -> org_id
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		organizations: make(map[uuid.UUID]*models.Organization),
		slugs:         make(map[string]uuid.UUID),
		addresses:     make(map[string]uuid.UUID),
	}
}

// Create creates a new organization in memory.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[org.ID]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	if _, exists := s.slugs[org.Slug]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	if _, exists := s.addresses[org.DBAddress]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	clone := *org
	s.organizations[org.ID] = &clone
	s.slugs[org.Slug] = org.ID
	s.addresses[org.DBAddress] = org.ID

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// GetBySlug retrieves an organization by slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.slugs[slug]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *s.organizations[id]
	return &clone, nil
}

// Delete deletes an organization by ID and releases its slug and address.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, exists := s.organizations[orgID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	delete(s.slugs, org.Slug)
	delete(s.addresses, org.DBAddress)
	delete(s.organizations, orgID)

	return nil
}

// ListByOwner returns all organizations owned by a user, newest first.
func (s *OrganizationStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Organization
	for _, org := range s.organizations {
		if org.OwnerID == ownerID {
			clone := *org
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
