// Package accounts covers user registration, credential checks and the
// admin-only user management surface.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"relato/core/apperrors"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/store"
	"relato/core/utils"
)

type Service struct {
	users    store.UsersStore
	sessions store.SessionsStore
	audit    store.AuditStore
	policy   *authz.Policy
	logger   *utils.Logger
}

func NewService(users store.UsersStore, sessions store.SessionsStore, audit store.AuditStore,
	policy *authz.Policy, logger *utils.Logger) *Service {
	return &Service{users: users, sessions: sessions, audit: audit, policy: policy, logger: logger}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register creates a regular user account. Roles are never self-assigned;
// promotion goes through SetRole.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.BadRequestf("invalid email address")
	}
	if name == "" {
		return nil, apperrors.BadRequestf("name is required")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, apperrors.BadRequestf("password must be at least 8 characters")
		}
		return nil, apperrors.Internalf(err)
	}
	u := &store.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         store.RoleUser,
	}
	if _, err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperrors.BadRequestf("email already registered")
		}
		return nil, apperrors.Internalf(err)
	}
	return u, nil
}

// Authenticate verifies credentials. It returns ErrUnauthorized without
// distinguishing unknown email from wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*store.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperrors.ErrUnauthorized
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, pr auth.Principal, id int64) (*store.User, error) {
	if pr.UserID != id && !s.policy.Allowed(pr.Role, authz.PermAccountsManage) {
		return nil, apperrors.ErrForbidden
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	if u == nil {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, pr auth.Principal) ([]store.User, error) {
	if !s.policy.Allowed(pr.Role, authz.PermAccountsManage) {
		return nil, apperrors.ErrForbidden
	}
	res, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.Internalf(err)
	}
	return res, nil
}

// SetRole promotes or demotes a user. Admins cannot demote themselves, which
// keeps at least one reachable admin account.
func (s *Service) SetRole(ctx context.Context, pr auth.Principal, id int64, role string) error {
	if !s.policy.Allowed(pr.Role, authz.PermAccountsManage) {
		return apperrors.ErrForbidden
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != store.RoleUser && role != store.RoleAdmin {
		return apperrors.BadRequestf("unknown role %q", role)
	}
	if id == pr.UserID && role != store.RoleAdmin {
		return apperrors.BadRequestf("cannot change own role")
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return apperrors.Internalf(err)
	}
	// Role lives in the session row too; drop the user's sessions so the next
	// login picks up the new role.
	if err := s.sessions.DeleteForUser(ctx, id); err != nil {
		s.logger.Errorf("accounts: session cleanup after role change failed: %v", err)
	}
	if err := s.audit.Append(ctx, fmt.Sprintf("user:%d", pr.UserID), "account.set_role",
		fmt.Sprintf("user %d -> %s", id, role)); err != nil {
		s.logger.Errorf("accounts: audit append failed: %v", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	if !s.policy.Allowed(pr.Role, authz.PermAccountsManage) {
		return apperrors.ErrForbidden
	}
	if id == pr.UserID {
		return apperrors.BadRequestf("cannot delete own account")
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return apperrors.Internalf(err)
	}
	if u == nil {
		return apperrors.ErrNotFound
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return apperrors.Internalf(err)
	}
	if err := s.sessions.DeleteForUser(ctx, id); err != nil {
		s.logger.Errorf("accounts: session cleanup after delete failed: %v", err)
	}
	if err := s.audit.Append(ctx, fmt.Sprintf("user:%d", pr.UserID), "account.delete",
		fmt.Sprintf("user %d (%s)", id, u.Email)); err != nil {
		s.logger.Errorf("accounts: audit append failed: %v", err)
	}
	return nil
}
