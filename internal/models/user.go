package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the global store. Email is stored lower-cased.
type User struct {
	ID           uuid.UUID  `json:"id"` // UUIDv7
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	CurrentOrgID *uuid.UUID `json:"current_org_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
