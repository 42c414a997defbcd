// Package auth issues and verifies bearer tokens and describes the
// authenticated account, its role and its permissions.
package auth

import (
	"strings"
	"time"
)

// Role is the coarse access level of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Permission is "module:action" or "module:action:feature".
type Permission string

// Permission parts.
const (
	ModuleAccount = "account"
	ModulePost    = "post"
	ModuleObject  = "object"

	ActionManage = "manage"
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const permSeparator = ":"

// MakePerm joins the non empty parts.
func MakePerm(module, action string, feature ...string) Permission {
	parts := make([]string, 0, 3)
	for _, p := range append([]string{module, action}, feature...) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return Permission(strings.Join(parts, permSeparator))
}

// ParsePerm splits p into its parts. Missing parts are empty.
func ParsePerm(p Permission) (module, action, feature string) {
	parts := strings.SplitN(string(p), permSeparator, 3)
	switch len(parts) {
	case 3:
		feature = parts[2]
		fallthrough
	case 2:
		action = parts[1]
		fallthrough
	case 1:
		module = parts[0]
	}
	return module, action, feature
}

// Account is the authenticated caller.
type Account struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions,omitempty"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   time.Time    `json:"createdAt,omitzero"`
	UpdatedAt   time.Time    `json:"updatedAt,omitzero"`
}

// IsAdmin reports whether the account has the admin role.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// HasRole reports whether the account role is one of roles.
func (a *Account) HasRole(roles ...Role) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if r == a.Role {
			return true
		}
	}
	return false
}

// MissingPermission returns the first of required the account lacks.
func (a *Account) MissingPermission(required ...Permission) (Permission, bool) {
	granted := make(map[Permission]struct{}, len(a.Permissions))
	for _, p := range a.Permissions {
		granted[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := granted[p]; !ok {
			return p, true
		}
	}
	return "", false
}
