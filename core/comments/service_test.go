package comments

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"relato/config"
	"relato/core/apperrors"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/notify"
	"relato/core/store"
	"relato/core/utils"
)

type testEnv struct {
	svc           *Service
	incidents     store.IncidentsStore
	notifications store.NotificationsStore

	admin   auth.Principal
	creator auth.Principal
	other   auth.Principal
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "comments.db")}
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
	incidentsStore := store.NewIncidentsStore(db)
	commentsStore := store.NewCommentsStore(db)
	notificationsStore := store.NewNotificationsStore(db)
	policy, err := authz.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	notifySvc := notify.NewService(notificationsStore, users, policy, logger)
	svc := NewService(commentsStore, incidentsStore, policy, notifySvc)

	mkUser := func(email, role string) auth.Principal {
		id, err := users.Create(context.Background(), &store.User{Email: email, Name: email, PasswordHash: "x", Role: role})
		if err != nil {
			t.Fatalf("create user %s: %v", email, err)
		}
		return auth.Principal{UserID: id, Role: role}
	}
	return &testEnv{
		svc:           svc,
		incidents:     incidentsStore,
		notifications: notificationsStore,
		admin:         mkUser("admin@example.com", store.RoleAdmin),
		creator:       mkUser("creator@example.com", store.RoleUser),
		other:         mkUser("other@example.com", store.RoleUser),
	}
}

func (e *testEnv) seedIncident(t *testing.T) *store.Incident {
	t.Helper()
	inc := &store.Incident{
		Title:       "Flickering lights",
		Description: "Hallway lights strobe",
		Priority:    "low",
		State:       "open",
		CreatorID:   e.creator.UserID,
	}
	if _, err := e.incidents.Create(context.Background(), inc); err != nil {
		t.Fatalf("seed incident: %v", err)
	}
	return inc
}

func TestAppendRejectsEmptyBody(t *testing.T) {
	env := setupService(t)
	inc := env.seedIncident(t)
	if _, err := env.svc.Append(context.Background(), env.creator, inc.ID, "   "); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Fatalf("expected bad request for blank comment, got %v", err)
	}
}

func TestAppendUnknownIncident(t *testing.T) {
	env := setupService(t)
	if _, err := env.svc.Append(context.Background(), env.creator, 999, "hello"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStrangerCannotReadOrWrite(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	inc := env.seedIncident(t)

	if _, err := env.svc.List(ctx, env.other, inc.ID); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("stranger list must be forbidden, got %v", err)
	}
	if _, err := env.svc.Append(ctx, env.other, inc.ID, "drive-by"); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("stranger append must be forbidden, got %v", err)
	}
	left, err := env.svc.List(ctx, env.creator, inc.ID)
	if err != nil {
		t.Fatalf("creator list: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("rejected comment must not persist, got %d", len(left))
	}
}

func TestSelfCommentDoesNotNotify(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	inc := env.seedIncident(t)

	if _, err := env.svc.Append(ctx, env.creator, inc.ID, "my own note"); err != nil {
		t.Fatalf("append: %v", err)
	}
	items, _ := env.notifications.List(ctx, store.NotificationFilter{RecipientID: env.creator.UserID})
	if len(items) != 0 {
		t.Fatalf("own comment must not notify, got %d", len(items))
	}
}

func TestAdminCommentNotifiesCreatorOnce(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	inc := env.seedIncident(t)

	c, err := env.svc.Append(ctx, env.admin, inc.ID, "looking into it")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if c.AuthorID != env.admin.UserID {
		t.Fatalf("author mismatch")
	}
	items, _ := env.notifications.List(ctx, store.NotificationFilter{RecipientID: env.creator.UserID, UnreadOnly: true})
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(items))
	}
	if items[0].Kind != store.NotificationCommentAdded {
		t.Fatalf("expected comment_added, got %q", items[0].Kind)
	}
	if items[0].IncidentID == nil || *items[0].IncidentID != inc.ID {
		t.Fatalf("notification must reference the incident")
	}
}

func TestListOldestFirst(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	inc := env.seedIncident(t)

	for _, body := range []string{"first", "second", "third"} {
		if _, err := env.svc.Append(ctx, env.creator, inc.ID, body); err != nil {
			t.Fatalf("append %s: %v", body, err)
		}
	}
	items, err := env.svc.List(ctx, env.creator, inc.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(items))
	}
	if items[0].Body != "first" || items[2].Body != "third" {
		t.Fatalf("expected oldest first, got %q..%q", items[0].Body, items[2].Body)
	}
}
