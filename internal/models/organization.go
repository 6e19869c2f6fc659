package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant in the global store.
// Slug and DBAddress are fixed at creation and never change.
type Organization struct {
	ID        uuid.UUID `json:"id"` // UUIDv7
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	DBAddress string    `json:"-"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
