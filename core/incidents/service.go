// Package incidents implements the incident lifecycle: creation, scoped
// listing, field edits, the admin-gated state machine and deletion.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"relato/config"
	"relato/core/apperrors"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/classify"
	"relato/core/notify"
	"relato/core/store"
	"relato/core/utils"
)

const (
	StateOpen        = "open"
	StateUnderReview = "under_review"
	StateResolved    = "resolved"
)

// conflictRetries bounds how often an update is replayed after losing an
// optimistic-version race.
const conflictRetries = 3

func ValidState(s string) bool {
	switch s {
	case StateOpen, StateUnderReview, StateResolved:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case "low", "medium", "high", "critical":
		return true
	}
	return false
}

type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

// UpdateRequest carries partial edits; nil fields stay untouched.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	State       *string `json:"state"`
	Category    *string `json:"category"`
}

type Service struct {
	incidents  store.IncidentsStore
	audit      store.AuditStore
	policy     *authz.Policy
	emitter    notify.Emitter
	classifier classify.Classifier
	cfg        config.IncidentsConfig
	logger     *utils.Logger
}

func NewService(incidents store.IncidentsStore, audit store.AuditStore, policy *authz.Policy,
	emitter notify.Emitter, classifier classify.Classifier, cfg config.IncidentsConfig, logger *utils.Logger) *Service {
	return &Service{
		incidents:  incidents,
		audit:      audit,
		policy:     policy,
		emitter:    emitter,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *Service) Create(ctx context.Context, pr auth.Principal, req CreateRequest) (*store.Incident, error) {
	if !s.policy.Allowed(pr.Role, authz.PermIncidentsCreate) {
		return nil, apperrors.ErrForbidden
	}
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" {
		return nil, apperrors.BadRequestf("title is required")
	}
	if description == "" {
		return nil, apperrors.BadRequestf("description is required")
	}
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	category := strings.TrimSpace(req.Category)
	if priority == "" && s.cfg.AutoClassify {
		suggestion := classify.Suggest(ctx, s.classifier, title, description, s.logger)
		priority = suggestion.Priority
		if category == "" {
			category = suggestion.Category
		}
	}
	if priority == "" {
		priority = s.cfg.DefaultPriority
	}
	if !ValidPriority(priority) {
		return nil, apperrors.BadRequestf("invalid priority %q", priority)
	}
	inc := &store.Incident{
		Title:       title,
		Description: description,
		Priority:    priority,
		State:       StateOpen,
		Category:    category,
		CreatorID:   pr.UserID,
	}
	if _, err := s.incidents.Create(ctx, inc); err != nil {
		return nil, apperrors.Internalf(err)
	}
	return inc, nil
}

// Get returns the incident when the caller created it or holds
// incidents.manage. Strangers see Forbidden, never the payload.
func (s *Service) Get(ctx context.Context, pr auth.Principal, id int64) (*store.Incident, error) {
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

// List scopes results by role: incidents.manage sees every incident, everyone
// else only their own.
func (s *Service) List(ctx context.Context, pr auth.Principal, filter store.IncidentFilter) ([]store.Incident, error) {
	if !s.policy.Allowed(pr.Role, authz.PermIncidentsView) {
		return nil, apperrors.ErrForbidden
	}
	if filter.State != "" && !ValidState(filter.State) {
		return nil, apperrors.BadRequestf("invalid state %q", filter.State)
	}
	if filter.Priority != "" && !ValidPriority(filter.Priority) {
		return nil, apperrors.BadRequestf("invalid priority %q", filter.Priority)
	}
	if !s.policy.Allowed(pr.Role, authz.PermIncidentsManage) {
		filter.CreatorID = pr.UserID
	}
	if max := s.cfg.ListLimitMax; max > 0 && (filter.Limit <= 0 || filter.Limit > max) {
		filter.Limit = max
	}
	res, err := s.incidents.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	return res, nil
}

func (s *Service) Update(ctx context.Context, pr auth.Principal, id int64, req UpdateRequest) (*store.Incident, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, apperrors.BadRequestf("title is required")
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		return nil, apperrors.BadRequestf("description is required")
	}
	if req.Priority != nil && !ValidPriority(strings.ToLower(strings.TrimSpace(*req.Priority))) {
		return nil, apperrors.BadRequestf("invalid priority %q", *req.Priority)
	}
	if req.State != nil && !ValidState(strings.ToLower(strings.TrimSpace(*req.State))) {
		return nil, apperrors.BadRequestf("invalid state %q", *req.State)
	}

	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
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

		prevState := inc.State
		changed := false
		if req.Title != nil && strings.TrimSpace(*req.Title) != inc.Title {
			inc.Title = strings.TrimSpace(*req.Title)
			changed = true
		}
		if req.Description != nil && strings.TrimSpace(*req.Description) != inc.Description {
			inc.Description = strings.TrimSpace(*req.Description)
			changed = true
		}
		if req.Priority != nil {
			p := strings.ToLower(strings.TrimSpace(*req.Priority))
			if p != inc.Priority {
				inc.Priority = p
				changed = true
			}
		}
		if req.Category != nil && strings.TrimSpace(*req.Category) != inc.Category {
			inc.Category = strings.TrimSpace(*req.Category)
			changed = true
		}
		stateChanged := false
		if req.State != nil {
			next := strings.ToLower(strings.TrimSpace(*req.State))
			if next != inc.State {
				if !s.policy.CanChangeState(pr) {
					return nil, apperrors.ErrForbidden
				}
				inc.State = next
				changed = true
				stateChanged = true
			}
		}
		if !changed {
			// Nothing to write: updated_at and version stay put, no fanout.
			return inc, nil
		}

		if err := s.incidents.Update(ctx, inc, inc.Version); err != nil {
			if errors.Is(err, store.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, apperrors.Internalf(err)
		}

		if stateChanged {
			if err := s.audit.Append(ctx, fmt.Sprintf("user:%d", pr.UserID), "incident.state_change",
				fmt.Sprintf("incident %d: %s -> %s", inc.ID, prevState, inc.State)); err != nil {
				s.logger.Errorf("incidents: audit append failed: %v", err)
			}
			if inc.CreatorID != pr.UserID {
				incidentID := inc.ID
				s.emitter.Emit(ctx, store.Notification{
					RecipientID: inc.CreatorID,
					Kind:        store.NotificationStateChanged,
					Title:       "Incident state updated",
					Body:        fmt.Sprintf("%q moved from %s to %s", inc.Title, prevState, inc.State),
					IncidentID:  &incidentID,
				})
			}
		}
		return inc, nil
	}
	return nil, apperrors.Internalf(lastErr)
}

// Delete removes the incident and, through the schema, its comments. The
// incident's notifications survive with the reference cleared.
func (s *Service) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	inc, err := s.incidents.Get(ctx, id)
	if err != nil {
		return apperrors.Internalf(err)
	}
	if inc == nil {
		return apperrors.ErrNotFound
	}
	if !s.policy.CanActOnIncident(pr, inc.CreatorID) {
		return apperrors.ErrForbidden
	}
	if err := s.incidents.Delete(ctx, id); err != nil {
		return apperrors.Internalf(err)
	}
	if err := s.audit.Append(ctx, fmt.Sprintf("user:%d", pr.UserID), "incident.delete",
		fmt.Sprintf("incident %d (%s)", inc.ID, inc.Title)); err != nil {
		s.logger.Errorf("incidents: audit append failed: %v", err)
	}
	return nil
}
