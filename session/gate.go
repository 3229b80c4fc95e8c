package session

import (
	"slices"

	"github.com/faustyna77/INF-frontend-next/domain"
)

// Requirement is the kind of credential a view asks for.
type Requirement int

const (
	RequireNothing Requirement = iota
	RequireToken
	RequireRoles
)

// Access describes who may reach a view.
type Access struct {
	Requirement Requirement
	Roles       []domain.Role
}

// Public views are always reachable.
func Public() Access { return Access{Requirement: RequireNothing} }

// Authenticated views need a token, whatever the role.
func Authenticated() Access { return Access{Requirement: RequireToken} }

// RequireRole restricts a view to a single role.
func RequireRole(role domain.Role) Access {
	return Access{Requirement: RequireRoles, Roles: []domain.Role{role}}
}

// RoleDispatch marks a view that renders a different variant per role.
func RoleDispatch(roles ...domain.Role) Access {
	return Access{Requirement: RequireRoles, Roles: roles}
}

// Verdict is the routing decision for a session and a view.
type Verdict int

const (
	Allow Verdict = iota
	Pending
	RedirectLogin
	RedirectHome
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Pending:
		return "pending"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	}
	return "unknown"
}

// Decide is the routing rule. It depends only on the session and the
// view's access; a session whose role is still resolving gets Pending for
// role-restricted views, never Allow or a redirect.
func Decide(s Session, a Access) Verdict {
	switch a.Requirement {
	case RequireNothing:
		return Allow
	case RequireToken:
		if !s.HasToken() {
			return RedirectLogin
		}
		return Allow
	case RequireRoles:
		if !s.HasToken() {
			return RedirectLogin
		}
		if s.State != StateAuthenticated {
			return Pending
		}
		if slices.Contains(a.Roles, s.Role) && s.Role != domain.RoleNone {
			return Allow
		}
		return RedirectHome
	}
	return RedirectHome
}
