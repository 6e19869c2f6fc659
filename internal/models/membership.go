package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within an organization.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Rank orders roles OWNER > ADMIN > MEMBER. Unknown roles rank zero.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is the same as or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name.
func ParseRole(value string) (Role, error) {
	r := Role(value)
	if r.Rank() == 0 {
		return "", fmt.Errorf("invalid role %q", value)
	}
	return r, nil
}

// MembershipStatus tracks whether an invitation has been taken up.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "PENDING"
	MembershipAccepted MembershipStatus = "ACCEPTED"
)

// Membership links a user to an organization. (UserID, OrgID) is unique.
type Membership struct {
	UserID    uuid.UUID        `json:"user_id"`
	OrgID     uuid.UUID        `json:"org_id"`
	Role      Role             `json:"role"`
	Status    MembershipStatus `json:"status"`
	InvitedBy *uuid.UUID       `json:"invited_by,omitempty"`
	InvitedAt time.Time        `json:"invited_at"`
	JoinedAt  *time.Time       `json:"joined_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// IsAccepted reports whether the membership grants access.
func (m *Membership) IsAccepted() bool {
	return m.Status == MembershipAccepted
}
