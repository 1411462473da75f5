package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"relato/config"
	"relato/core/store"
	"relato/core/utils"
)

func TestRunOncePurgesExpiredSessionsAndReadNotifications(t *testing.T) {
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "sweep.db")}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, cfg, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	notifications := store.NewNotificationsStore(db)

	uid, err := users.Create(ctx, &store.User{Email: "sweep@example.com", Name: "s", PasswordHash: "x", Role: store.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	now := time.Now().UTC()
	expired := &store.SessionRecord{
		ID: "expired", UserID: uid, Role: store.RoleUser, CSRFToken: "c",
		CreatedAt: now.Add(-2 * time.Hour), LastSeenAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	live := &store.SessionRecord{
		ID: "live", UserID: uid, Role: store.RoleUser, CSRFToken: "c",
		CreatedAt: now, LastSeenAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := sessions.Save(ctx, expired); err != nil {
		t.Fatalf("save expired: %v", err)
	}
	if err := sessions.Save(ctx, live); err != nil {
		t.Fatalf("save live: %v", err)
	}

	readID, err := notifications.Create(ctx, &store.Notification{RecipientID: uid, Kind: store.NotificationSystem, Title: "old"})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if err := notifications.SetRead(ctx, readID, true); err != nil {
		t.Fatalf("set read: %v", err)
	}
	unreadID, err := notifications.Create(ctx, &store.Notification{RecipientID: uid, Kind: store.NotificationSystem, Title: "keep"})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}

	// A tiny max age makes everything already written count as stale.
	sweeper := NewSweeper(config.RetentionConfig{Enabled: true, NotificationMaxAge: time.Nanosecond}, sessions, notifications, logger)
	if err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if sr, _ := sessions.Get(ctx, "live"); sr == nil {
		t.Fatalf("live session must survive the sweep")
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id='expired'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired session row must be deleted")
	}
	if n, _ := notifications.Get(ctx, readID); n != nil {
		t.Fatalf("stale read notification must be purged")
	}
	if n, _ := notifications.Get(ctx, unreadID); n == nil {
		t.Fatalf("unread notification must survive")
	}
}
