// Package session holds the token/role pair of each browser session and
// decides which views the session may reach.
package session

import (
	"time"

	"github.com/faustyna77/INF-frontend-next/domain"
)

// State is the position of a session in its lifecycle.
type State string

const (
	StateAnonymous     State = "anonymous"
	StateResolving     State = "resolving"
	StateAuthenticated State = "authenticated"
)

// Session is the authenticated actor behind one browser.
//
// Role is authoritative only in StateAuthenticated. RoleHint is the last
// role seen for the session and may be used to render navigation while a
// lookup is in flight, never to authorize.
type Session struct {
	ID         string
	Token      string
	Role       domain.Role
	RoleHint   domain.Role
	State      State
	ResolvedAt time.Time
}

// Anonymous returns the logged-out session for id.
func Anonymous(id string) Session {
	return Session{ID: id, State: StateAnonymous}
}

// HasToken reports whether a bearer token is held.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// Resolving reports whether the role lookup has not completed yet.
func (s Session) Resolving() bool {
	return s.State == StateResolving
}

// DisplayRole is the role to use for navigation: the resolved role, or the
// hint while resolving.
func (s Session) DisplayRole() domain.Role {
	switch s.State {
	case StateAuthenticated:
		return s.Role
	case StateResolving:
		return s.RoleHint
	}
	return domain.RoleNone
}

// normalize enforces that a session without a token is anonymous.
func normalize(s Session) Session {
	if s.Token == "" {
		return Anonymous(s.ID)
	}
	if s.State == StateAnonymous || s.State == "" {
		s.State = StateResolving
	}
	if s.State == StateAuthenticated {
		s.RoleHint = s.Role
	}
	return s
}
