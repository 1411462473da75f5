package authz

import (
	"testing"

	"relato/core/auth"
	"relato/core/store"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return p
}

func TestRolePermissions(t *testing.T) {
	p := newTestPolicy(t)

	cases := []struct {
		role string
		perm Permission
		want bool
	}{
		{store.RoleUser, PermIncidentsCreate, true},
		{store.RoleUser, PermIncidentsView, true},
		{store.RoleUser, PermCommentsWrite, true},
		{store.RoleUser, PermNotificationsView, true},
		{store.RoleUser, PermIncidentsManage, false},
		{store.RoleUser, PermNotificationsAdmin, false},
		{store.RoleUser, PermAccountsManage, false},
		{store.RoleUser, PermAuditView, false},
		{store.RoleAdmin, PermIncidentsManage, true},
		{store.RoleAdmin, PermNotificationsAdmin, true},
		{store.RoleAdmin, PermAccountsManage, true},
		{store.RoleAdmin, PermAuditView, true},
		// Admin inherits the user grants.
		{store.RoleAdmin, PermIncidentsCreate, true},
		{store.RoleAdmin, PermCommentsWrite, true},
		{"ghost", PermIncidentsView, false},
	}
	for _, tc := range cases {
		if got := p.Allowed(tc.role, tc.perm); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestCanActOnIncident(t *testing.T) {
	p := newTestPolicy(t)
	creator := auth.Principal{UserID: 7, Role: store.RoleUser}
	stranger := auth.Principal{UserID: 8, Role: store.RoleUser}
	admin := auth.Principal{UserID: 9, Role: store.RoleAdmin}

	if !p.CanActOnIncident(creator, 7) {
		t.Fatalf("creator must act on own incident")
	}
	if p.CanActOnIncident(stranger, 7) {
		t.Fatalf("stranger must not act on foreign incident")
	}
	if !p.CanActOnIncident(admin, 7) {
		t.Fatalf("admin must act on any incident")
	}
}

func TestCanChangeState(t *testing.T) {
	p := newTestPolicy(t)
	if p.CanChangeState(auth.Principal{UserID: 1, Role: store.RoleUser}) {
		t.Fatalf("regular user must not drive the state machine")
	}
	if !p.CanChangeState(auth.Principal{UserID: 2, Role: store.RoleAdmin}) {
		t.Fatalf("admin must drive the state machine")
	}
}

func TestCanActOnNotification(t *testing.T) {
	p := newTestPolicy(t)
	owner := auth.Principal{UserID: 3, Role: store.RoleUser}
	other := auth.Principal{UserID: 4, Role: store.RoleUser}
	admin := auth.Principal{UserID: 5, Role: store.RoleAdmin}

	if !p.CanActOnNotification(owner, 3) {
		t.Fatalf("owner must manage own notifications")
	}
	if p.CanActOnNotification(other, 3) {
		t.Fatalf("non-owner must not manage foreign notifications")
	}
	if !p.CanActOnNotification(admin, 3) {
		t.Fatalf("admin must manage any notification")
	}
}
