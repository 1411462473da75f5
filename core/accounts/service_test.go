package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"relato/config"
	"relato/core/apperrors"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/store"
	"relato/core/utils"
)

func setupService(t *testing.T) (*Service, store.UsersStore, store.SessionsStore) {
	t.Helper()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "accounts.db")}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	policy, err := authz.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return NewService(users, sessions, audits, policy, logger), users, sessions
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Email: "NEW@Example.com", Name: "New User", Password: "longenough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "new@example.com" {
		t.Fatalf("email must be normalized, got %q", u.Email)
	}
	if u.Role != store.RoleUser {
		t.Fatalf("self registration must yield a regular user, got %q", u.Role)
	}

	if _, err := svc.Authenticate(ctx, "new@example.com", "longenough"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "new@example.com", "wrong"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("wrong password must be unauthorized, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost@example.com", "longenough"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("unknown email must be unauthorized, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Email: "not-an-email", Name: "n", Password: "longenough"}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("expected bad request for invalid email, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@b.com", Name: "n", Password: "short"}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("expected bad request for weak password, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "dup@example.com", Name: "n", Password: "longenough"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "dup@example.com", Name: "n", Password: "longenough"}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("duplicate email must be bad request, got %v", err)
	}
}

func TestSetRoleDropsSessions(t *testing.T) {
	svc, users, sessions := setupService(t)
	ctx := context.Background()

	adminID, err := users.Create(ctx, &store.User{Email: "root@example.com", Name: "r", PasswordHash: "x", Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	admin := auth.Principal{UserID: adminID, Role: store.RoleAdmin}
	target, err := svc.Register(ctx, RegisterRequest{Email: "target@example.com", Name: "t", Password: "longenough"})
	if err != nil {
		t.Fatalf("register target: %v", err)
	}
	sr := &store.SessionRecord{
		ID: "target-session", UserID: target.ID, Role: store.RoleUser, CSRFToken: "c",
		CreatedAt: utils.NowUTC(), LastSeenAt: utils.NowUTC(), ExpiresAt: utils.NowUTC().Add(time.Hour),
	}
	if err := sessions.Save(ctx, sr); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if err := svc.SetRole(ctx, admin, target.ID, store.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	got, _ := users.Get(ctx, target.ID)
	if got.Role != store.RoleAdmin {
		t.Fatalf("role not applied: %q", got.Role)
	}
	if s, _ := sessions.Get(ctx, "target-session"); s != nil {
		t.Fatalf("role change must invalidate the user's sessions")
	}

	if err := svc.SetRole(ctx, admin, adminID, store.RoleUser); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("self demotion must be rejected, got %v", err)
	}
	user := auth.Principal{UserID: target.ID, Role: store.RoleUser}
	if err := svc.SetRole(ctx, user, adminID, store.RoleUser); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("non-admin set role must be forbidden, got %v", err)
	}
}

func TestDeleteRules(t *testing.T) {
	svc, users, _ := setupService(t)
	ctx := context.Background()

	adminID, err := users.Create(ctx, &store.User{Email: "root@example.com", Name: "r", PasswordHash: "x", Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	admin := auth.Principal{UserID: adminID, Role: store.RoleAdmin}

	if err := svc.Delete(ctx, admin, adminID); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("self delete must be rejected, got %v", err)
	}
	if err := svc.Delete(ctx, admin, 9999); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown user must be not found, got %v", err)
	}

	target, err := svc.Register(ctx, RegisterRequest{Email: "bye@example.com", Name: "b", Password: "longenough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Delete(ctx, admin, target.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := users.Get(ctx, target.ID); got != nil {
		t.Fatalf("user must be gone")
	}
}
