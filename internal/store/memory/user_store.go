package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
type UserStore struct {
	mu sync.RWMutex

	users  map[uuid.UUID]*models.User // user_id -> User
	emails map[string]uuid.UUID       // lower(email) -> user_id
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:  make(map[uuid.UUID]*models.User),
		emails: make(map[string]uuid.UUID),
	}
}

func cloneUser(u *models.User) *models.User {
	clone := *u
	if u.CurrentOrgID != nil {
		id := *u.CurrentOrgID
		clone.CurrentOrgID = &id
	}
	return &clone
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.users[user.ID]; exists {
		return store.ErrUserAlreadyExists
	}
	if _, exists := s.emails[email]; exists {
		return store.ErrUserAlreadyExists
	}

	clone := cloneUser(user)
	clone.Email = email
	s.users[user.ID] = clone
	s.emails[email] = user.ID

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	return cloneUser(user), nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.emails[strings.ToLower(email)]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	return cloneUser(s.users[id]), nil
}

// SetCurrentOrg updates the user's current organization pointer.
func (s *UserStore) SetCurrentOrg(ctx context.Context, userID, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return store.ErrUserNotFound
	}

	user.CurrentOrgID = &orgID
	user.UpdatedAt = time.Now()

	return nil
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return store.ErrUserNotFound
	}

	delete(s.emails, user.Email)
	delete(s.users, userID)

	return nil
}
