package policy

import (
	"errors"

	"toko/internal/models"
)

// ErrForbidden is returned when the role may not perform the action.
var ErrForbidden = errors.New("forbidden")

// Role is the access level of a user.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "user"
}

// RoleOf returns the role of u. A nil user has the lowest role.
func RoleOf(u *models.User) Role {
	if u != nil && u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Action is a product operation subject to authorization.
type Action string

const (
	ViewList       Action = "view-list"
	View           Action = "view"
	ShowCreateForm Action = "show-create-form"
	Create         Action = "create"
	ShowEditForm   Action = "show-edit-form"
	Update         Action = "update"
	Delete         Action = "delete"
)

// minimumRole is the decision table for product actions.
var minimumRole = map[Action]Role{
	ViewList:       RoleUser,
	View:           RoleUser,
	ShowCreateForm: RoleAdmin,
	Create:         RoleAdmin,
	ShowEditForm:   RoleAdmin,
	Update:         RoleAdmin,
	Delete:         RoleAdmin,
}

// Allows reports whether role may perform action. Unknown actions are denied.
func Allows(role Role, action Action) bool {
	required, ok := minimumRole[action]
	if !ok {
		return false
	}
	return role >= required
}

// Authorize returns ErrForbidden unless u may perform action.
func Authorize(u *models.User, action Action) error {
	if !Allows(RoleOf(u), action) {
		return ErrForbidden
	}
	return nil
}
