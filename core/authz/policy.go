// Package authz is the single authorization module consulted by every
// operation. Role permissions are enforced by casbin; ownership checks
// (creator of an incident, recipient of a notification) live next to them so
// no handler or service inlines its own rules.
package authz

import (
	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	"relato/core/auth"
)

type Permission string

const (
	PermIncidentsCreate    Permission = "incidents.create"
	PermIncidentsView      Permission = "incidents.view"
	PermIncidentsEdit      Permission = "incidents.edit"
	PermIncidentsManage    Permission = "incidents.manage"
	PermCommentsWrite      Permission = "comments.write"
	PermNotificationsView  Permission = "notifications.view"
	PermNotificationsAdmin Permission = "notifications.manage"
	PermAccountsManage     Permission = "accounts.manage"
	PermAuditView          Permission = "audit.view"
)

const modelText = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.perm == p.perm
`

var rolePolicies = [][]string{
	{"user", string(PermIncidentsCreate)},
	{"user", string(PermIncidentsView)},
	{"user", string(PermIncidentsEdit)},
	{"user", string(PermCommentsWrite)},
	{"user", string(PermNotificationsView)},
	{"admin", string(PermIncidentsManage)},
	{"admin", string(PermNotificationsAdmin)},
	{"admin", string(PermAccountsManage)},
	{"admin", string(PermAuditView)},
}

type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicy("admin", "user"); err != nil {
		return nil, err
	}
	if _, err := e.AddPolicies(rolePolicies); err != nil {
		return nil, err
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(role string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	ok, err := p.enforcer.Enforce(role, string(perm))
	return err == nil && ok
}

// CanActOnIncident covers field edits, comment access and delete: the
// incident's creator or anyone holding incidents.manage.
func (p *Policy) CanActOnIncident(pr auth.Principal, creatorID int64) bool {
	if pr.UserID != 0 && pr.UserID == creatorID {
		return true
	}
	return p.Allowed(pr.Role, PermIncidentsManage)
}

// CanChangeState guards the incident state machine; only incidents.manage
// holders may trigger a transition, creators included.
func (p *Policy) CanChangeState(pr auth.Principal) bool {
	return p.Allowed(pr.Role, PermIncidentsManage)
}

// CanActOnNotification covers read-flag changes and deletion: the recipient
// or anyone holding notifications.manage.
func (p *Policy) CanActOnNotification(pr auth.Principal, recipientID int64) bool {
	if pr.UserID != 0 && pr.UserID == recipientID {
		return true
	}
	return p.Allowed(pr.Role, PermNotificationsAdmin)
}
