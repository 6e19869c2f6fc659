package store

import (
	"errors"
)

// ErrUnavailable marks failures reaching the backing database, as opposed to
// failures of the operation itself.
var ErrUnavailable = errors.New("store unavailable")

// Stores bundles the global stores shared by every organization.
type Stores struct {
	Users         UserStore
	Organizations OrganizationStore
	Memberships   MembershipStore
}
