package core

import "context"

// AccessChecker decides whether the caller may act on a project. The
// caller's identity travels in ctx.
type AccessChecker interface {
	IsAdmin(ctx context.Context) bool
	HasRole(ctx context.Context, roleID int64) bool
}

// AdminAccess grants every request. The CLI runs with it.
type AdminAccess struct{}

// IsAdmin implements AccessChecker.
func (AdminAccess) IsAdmin(context.Context) bool { return true }

// HasRole implements AccessChecker.
func (AdminAccess) HasRole(context.Context, int64) bool { return true }

// RoleAccess grants the listed roles. Admins hold every role.
type RoleAccess struct {
	Admin bool
	Roles []int64
}

// IsAdmin implements AccessChecker.
func (r RoleAccess) IsAdmin(context.Context) bool { return r.Admin }

// HasRole implements AccessChecker.
func (r RoleAccess) HasRole(_ context.Context, roleID int64) bool {
	if r.Admin {
		return true
	}
	for _, id := range r.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}
