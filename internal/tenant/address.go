package tenant

import (
	"strings"

	"github.com/google/uuid"
)

// AddressPrefix starts every tenant store address.
const AddressPrefix = "taskflow_org_"

// AddressFor derives the tenant store address owned by ownerID. The address is
// keyed on the owner, so one owner maps to exactly one tenant store. It only
// contains lower-case hex, which keeps it valid as a postgres schema name and a
// file name on case-insensitive filesystems.
func AddressFor(ownerID uuid.UUID) string {
	return AddressPrefix + strings.ReplaceAll(ownerID.String(), "-", "")
}

// ValidAddress reports whether address has the shape produced by AddressFor.
func ValidAddress(address string) bool {
	rest, ok := strings.CutPrefix(address, AddressPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	for _, c := range rest {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
