// Package comments is the append-only discussion ledger attached to
// incidents. Comments are never edited or removed on their own; they only
// disappear with the incident that owns them.
package comments

import (
	"context"
	"fmt"
	"strings"

	"relato/core/apperrors"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/notify"
	"relato/core/store"
)

type Service struct {
	comments  store.CommentsStore
	incidents store.IncidentsStore
	policy    *authz.Policy
	emitter   notify.Emitter
}

func NewService(comments store.CommentsStore, incidents store.IncidentsStore, policy *authz.Policy, emitter notify.Emitter) *Service {
	return &Service{comments: comments, incidents: incidents, policy: policy, emitter: emitter}
}

// List returns the incident's ledger oldest-first, subject to the same
// visibility rule as the incident itself.
func (s *Service) List(ctx context.Context, pr auth.Principal, incidentID int64) ([]store.Comment, error) {
	if _, err := s.loadIncident(ctx, pr, incidentID); err != nil {
		return nil, err
	}
	res, err := s.comments.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	return res, nil
}

// Append adds a comment and notifies the incident creator unless they wrote
// it themselves.
func (s *Service) Append(ctx context.Context, pr auth.Principal, incidentID int64, body string) (*store.Comment, error) {
	if !s.policy.Allowed(pr.Role, authz.PermCommentsWrite) {
		return nil, apperrors.ErrForbidden
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.BadRequestf("comment text is required")
	}
	inc, err := s.loadIncident(ctx, pr, incidentID)
	if err != nil {
		return nil, err
	}
	c := &store.Comment{
		IncidentID: incidentID,
		AuthorID:   pr.UserID,
		Body:       body,
	}
	if _, err := s.comments.Create(ctx, c); err != nil {
		return nil, apperrors.Internalf(err)
	}
	if inc.CreatorID != pr.UserID {
		id := inc.ID
		s.emitter.Emit(ctx, store.Notification{
			RecipientID: inc.CreatorID,
			Kind:        store.NotificationCommentAdded,
			Title:       "New comment on your incident",
			Body:        fmt.Sprintf("New activity on %q", inc.Title),
			IncidentID:  &id,
		})
	}
	return c, nil
}

func (s *Service) loadIncident(ctx context.Context, pr auth.Principal, id int64) (*store.Incident, error) {
	inc, err := s.incidents.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	if inc == nil {
		return nil, apperrors.ErrNotFound
	}
	if !s.policy.CanActOnIncident(pr, inc.CreatorID) {
		return nil, apperrors.ErrForbidden
	}
	return inc, nil
}
