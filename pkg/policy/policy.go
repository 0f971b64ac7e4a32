// Package policy decides what an identity may do with an item.
//
// Two roles are recognized: an admin role that may do anything and a user
// role limited to its own items, plus read-only access to public ones. An
// identity carrying neither role is denied everything. When an
// identity carries both, the higher one wins.
package policy

import (
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

const (
	DefaultAdminRole = "admin"
	DefaultUserRole  = "user"
)

// Level is the effective privilege of an identity, in increasing order.
type Level int

const (
	LevelNone Level = iota
	LevelUser
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelAdmin:
		return "admin"
	case LevelUser:
		return "user"
	default:
		return "none"
	}
}

// Evaluator maps identities to decisions. The zero value uses the default
// role names.
type Evaluator struct {
	AdminRole string
	UserRole  string
}

// New returns an evaluator for the given role names. Empty names fall back
// to the defaults.
func New(adminRole, userRole string) Evaluator {
	return Evaluator{AdminRole: adminRole, UserRole: userRole}
}

func (e Evaluator) adminRole() string {
	if e.AdminRole == "" {
		return DefaultAdminRole
	}
	return e.AdminRole
}

func (e Evaluator) userRole() string {
	if e.UserRole == "" {
		return DefaultUserRole
	}
	return e.UserRole
}

// HighestLevel returns the strongest level granted by who's roles.
func (e Evaluator) HighestLevel(who media.Identity) Level {
	highest := LevelNone
	for _, r := range who.Roles {
		var l Level
		switch r {
		case e.adminRole():
			l = LevelAdmin
		case e.userRole():
			l = LevelUser
		}
		if l > highest {
			highest = l
		}
	}
	// A user level without a user id cannot own anything.
	if highest == LevelUser && who.Anonymous() {
		return LevelNone
	}
	return highest
}

// IsAdmin reports whether who holds the admin role.
func (e Evaluator) IsAdmin(who media.Identity) bool {
	return e.HighestLevel(who) == LevelAdmin
}

// CanCreate reports whether who may add new items.
func (e Evaluator) CanCreate(who media.Identity) bool {
	return e.HighestLevel(who) >= LevelUser
}

// CanRead allows admins, owners, and any user for public items.
func (e Evaluator) CanRead(who media.Identity, item *media.Item) bool {
	switch e.HighestLevel(who) {
	case LevelAdmin:
		return true
	case LevelUser:
		return item.CreatedBy == who.UserID || item.IsPublic()
	default:
		return false
	}
}

// CanWrite allows admins and owners.
func (e Evaluator) CanWrite(who media.Identity, item *media.Item) bool {
	switch e.HighestLevel(who) {
	case LevelAdmin:
		return true
	case LevelUser:
		return item.CreatedBy == who.UserID
	default:
		return false
	}
}

// Visibility returns the index filter matching CanRead for who.
func (e Evaluator) Visibility(who media.Identity) metadata.Visibility {
	switch e.HighestLevel(who) {
	case LevelAdmin:
		return metadata.Visibility{All: true}
	case LevelUser:
		return metadata.Visibility{Owner: who.UserID, IncludePublic: true}
	default:
		return metadata.Visibility{}
	}
}

// TrashVisibility is the filter for listing trashed items: admins see all,
// users only their own.
func (e Evaluator) TrashVisibility(who media.Identity) metadata.Visibility {
	switch e.HighestLevel(who) {
	case LevelAdmin:
		return metadata.Visibility{All: true}
	case LevelUser:
		return metadata.Visibility{Owner: who.UserID}
	default:
		return metadata.Visibility{}
	}
}
