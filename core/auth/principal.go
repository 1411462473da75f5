package auth

import "relato/core/store"

type contextKey string

// SessionContextKey carries the authenticated session through the request
// context. Core services never look it up; handlers extract a Principal and
// pass it down explicitly.
const SessionContextKey contextKey = "relato.session"

// Principal is the authenticated actor behind an operation. It is built per
// request from the session and is never persisted.
type Principal struct {
	UserID int64
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == store.RoleAdmin
}

func PrincipalFromSession(sr *store.SessionRecord) Principal {
	if sr == nil {
		return Principal{}
	}
	return Principal{UserID: sr.UserID, Role: sr.Role}
}
