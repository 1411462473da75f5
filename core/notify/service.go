// Package notify owns the notification ledger: fanout emitted by incident and
// comment mutations plus the inbox operations exposed over the API.
package notify

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"relato/core/apperrors"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/store"
	"relato/core/utils"
)

// Emitter is the write-side contract incident and comment services depend on.
// Emissions are best-effort: failures are logged, never returned.
type Emitter interface {
	Emit(ctx context.Context, n store.Notification)
}

type Service struct {
	notifications store.NotificationsStore
	users         store.UsersStore
	policy        *authz.Policy
	logger        *utils.Logger
}

func NewService(notifications store.NotificationsStore, users store.UsersStore, policy *authz.Policy, logger *utils.Logger) *Service {
	return &Service{notifications: notifications, users: users, policy: policy, logger: logger}
}

// Emit persists a notification without letting storage trouble propagate into
// the mutation that triggered it.
func (s *Service) Emit(ctx context.Context, n store.Notification) {
	if n.RecipientID == 0 {
		return
	}
	if _, err := s.notifications.Create(ctx, &n); err != nil {
		s.logger.Errorf("notify: dropping %s notification for user %d: %v", n.Kind, n.RecipientID, err)
	}
}

// Create is the manual, operator-driven path. Only notifications.manage may
// author arbitrary notifications.
func (s *Service) Create(ctx context.Context, pr auth.Principal, n store.Notification) (*store.Notification, error) {
	if !s.policy.Allowed(pr.Role, authz.PermNotificationsAdmin) {
		return nil, apperrors.ErrForbidden
	}
	switch n.Kind {
	case store.NotificationStateChanged, store.NotificationCommentAdded, store.NotificationSystem:
	case "":
		return nil, apperrors.BadRequestf("kind is required")
	default:
		return nil, apperrors.BadRequestf("unknown notification kind %q", n.Kind)
	}
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return nil, apperrors.BadRequestf("title is required")
	}
	n.Body = strings.TrimSpace(n.Body)
	if n.Body == "" {
		return nil, apperrors.BadRequestf("body is required")
	}
	if n.RecipientID == 0 {
		return nil, apperrors.BadRequestf("recipient is required")
	}
	recipient, err := s.users.Get(ctx, n.RecipientID)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	if recipient == nil {
		return nil, apperrors.ErrNotFound
	}
	n.Read = false
	if _, err := s.notifications.Create(ctx, &n); err != nil {
		return nil, apperrors.Internalf(err)
	}
	return &n, nil
}

// List returns the caller's own inbox, newest first.
func (s *Service) List(ctx context.Context, pr auth.Principal, unreadOnly bool, limit int) ([]store.Notification, error) {
	if !s.policy.Allowed(pr.Role, authz.PermNotificationsView) {
		return nil, apperrors.ErrForbidden
	}
	res, err := s.notifications.List(ctx, store.NotificationFilter{
		RecipientID: pr.UserID,
		UnreadOnly:  unreadOnly,
		Limit:       limit,
	})
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	return res, nil
}

func (s *Service) MarkRead(ctx context.Context, pr auth.Principal, id int64, read bool) error {
	n, err := s.load(ctx, pr, id)
	if err != nil {
		return err
	}
	if err := s.notifications.SetRead(ctx, n.ID, read); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return apperrors.Internalf(err)
	}
	return nil
}

// MarkAllRead flips every unread notification of the caller and reports how
// many changed. Calling it again is a harmless zero.
func (s *Service) MarkAllRead(ctx context.Context, pr auth.Principal) (int64, error) {
	if !s.policy.Allowed(pr.Role, authz.PermNotificationsView) {
		return 0, apperrors.ErrForbidden
	}
	n, err := s.notifications.MarkAllRead(ctx, pr.UserID)
	if err != nil {
		return 0, apperrors.Internalf(err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	n, err := s.load(ctx, pr, id)
	if err != nil {
		return err
	}
	if err := s.notifications.Delete(ctx, n.ID); err != nil {
		return apperrors.Internalf(err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, pr auth.Principal, id int64) (*store.Notification, error) {
	n, err := s.notifications.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	if n == nil {
		return nil, apperrors.ErrNotFound
	}
	if !s.policy.CanActOnNotification(pr, n.RecipientID) {
		return nil, apperrors.ErrForbidden
	}
	return n, nil
}
