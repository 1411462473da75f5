package notify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"relato/config"
	"relato/core/apperrors"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/store"
	"relato/core/utils"
)

func setupService(t *testing.T) (*Service, store.NotificationsStore, auth.Principal, auth.Principal) {
	t.Helper()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "notify.db")}
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
	notificationsStore := store.NewNotificationsStore(db)
	policy, err := authz.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	svc := NewService(notificationsStore, users, policy, logger)

	adminID, err := users.Create(context.Background(), &store.User{Email: "admin@example.com", Name: "a", PasswordHash: "x", Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	userID, err := users.Create(context.Background(), &store.User{Email: "user@example.com", Name: "u", PasswordHash: "x", Role: store.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return svc, notificationsStore, auth.Principal{UserID: adminID, Role: store.RoleAdmin}, auth.Principal{UserID: userID, Role: store.RoleUser}
}

func TestManualCreateAdminOnly(t *testing.T) {
	svc, _, admin, user := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, user, store.Notification{RecipientID: admin.UserID, Kind: store.NotificationSystem, Title: "hi", Body: "b"}); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("regular user must not author notifications, got %v", err)
	}
	n, err := svc.Create(ctx, admin, store.Notification{RecipientID: user.UserID, Kind: store.NotificationSystem, Title: "maintenance window", Body: "saturday 02:00"})
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if n.Read {
		t.Fatalf("new notification must start unread")
	}
}

func TestManualCreateValidation(t *testing.T) {
	svc, _, admin, user := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, admin, store.Notification{RecipientID: user.UserID, Kind: "carrier_pigeon", Title: "t", Body: "b"}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("expected bad request for unknown kind, got %v", err)
	}
	if _, err := svc.Create(ctx, admin, store.Notification{RecipientID: user.UserID, Kind: store.NotificationSystem, Title: "  ", Body: "b"}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("expected bad request for empty title, got %v", err)
	}
	if _, err := svc.Create(ctx, admin, store.Notification{RecipientID: user.UserID, Kind: store.NotificationSystem, Title: "t", Body: "  "}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("expected bad request for empty body, got %v", err)
	}
	if _, err := svc.Create(ctx, admin, store.Notification{RecipientID: user.UserID, Title: "t", Body: "b"}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("expected bad request for missing kind, got %v", err)
	}
	if _, err := svc.Create(ctx, admin, store.Notification{RecipientID: 98765, Kind: store.NotificationSystem, Title: "t", Body: "b"}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown recipient, got %v", err)
	}
}

func TestListIsSelfScoped(t *testing.T) {
	svc, _, admin, user := setupService(t)
	ctx := context.Background()

	svc.Emit(ctx, store.Notification{RecipientID: user.UserID, Kind: store.NotificationSystem, Title: "for user"})
	svc.Emit(ctx, store.Notification{RecipientID: admin.UserID, Kind: store.NotificationSystem, Title: "for admin"})

	items, err := svc.List(ctx, user, false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Title != "for user" {
		t.Fatalf("list must be scoped to the caller: %+v", items)
	}
}

func TestMarkReadOwnership(t *testing.T) {
	svc, notifications, admin, user := setupService(t)
	ctx := context.Background()

	id, err := notifications.Create(ctx, &store.Notification{RecipientID: user.UserID, Kind: store.NotificationSystem, Title: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other := auth.Principal{UserID: admin.UserID + user.UserID + 100, Role: store.RoleUser}
	if err := svc.MarkRead(ctx, other, id, true); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("stranger must not flip others' notifications, got %v", err)
	}
	if err := svc.MarkRead(ctx, user, id, true); err != nil {
		t.Fatalf("owner mark read: %v", err)
	}
	// Admin can act on any notification.
	if err := svc.MarkRead(ctx, admin, id, false); err != nil {
		t.Fatalf("admin mark unread: %v", err)
	}
	if err := svc.MarkRead(ctx, user, 55555, true); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkAllReadRepeatable(t *testing.T) {
	svc, _, _, user := setupService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		svc.Emit(ctx, store.Notification{RecipientID: user.UserID, Kind: store.NotificationSystem, Title: "t"})
	}
	n, err := svc.MarkAllRead(ctx, user)
	if err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 updated, got %d", n)
	}
	n, err = svc.MarkAllRead(ctx, user)
	if err != nil {
		t.Fatalf("repeat mark all: %v", err)
	}
	if n != 0 {
		t.Fatalf("repeat must update 0, got %d", n)
	}
}

func TestDeleteOwnership(t *testing.T) {
	svc, notifications, _, user := setupService(t)
	ctx := context.Background()

	id, err := notifications.Create(ctx, &store.Notification{RecipientID: user.UserID, Kind: store.NotificationSystem, Title: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, user, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, user, id); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("second delete must be not found, got %v", err)
	}
}
