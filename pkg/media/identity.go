package media

import "slices"

// Identity is the authenticated caller of a vault operation. It is supplied
// by the transport layer and passed explicitly to every engine call.
type Identity struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the identity carries role.
func (i Identity) HasRole(role string) bool {
	return role != "" && slices.Contains(i.Roles, role)
}

// Anonymous reports whether the identity carries no user id.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}
