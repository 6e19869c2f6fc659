package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectArchived  ProjectStatus = "ARCHIVED"
	ProjectCompleted ProjectStatus = "COMPLETED"
)

// Project groups tasks inside a tenant store.
type Project struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectArchived, ProjectCompleted:
		return true
	}
	return false
}
