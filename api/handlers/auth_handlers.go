package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"relato/config"
	"relato/core/accounts"
	"relato/core/auth"
	"relato/core/store"
	"relato/core/utils"
)

const (
	SessionCookieName = "relato_session"
	CSRFCookieName    = "relato_csrf"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	accounts       *accounts.Service
	users          store.UsersStore
	sessionManager *auth.SessionManager
	audits         store.AuditStore
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, accountsSvc *accounts.Service, users store.UsersStore,
	sm *auth.SessionManager, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, accounts: accountsSvc, users: users, sessionManager: sm, audits: audits, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req accounts.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if err := h.audits.Append(r.Context(), user.Email, "auth.register", ""); err != nil && h.logger != nil {
		h.logger.Errorf("auth register audit failed: %v", err)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.accounts.Authenticate(r.Context(), cred.Email, cred.Password)
	if err != nil {
		if err := h.audits.Append(r.Context(), cred.Email, "auth.login_failed", ""); err != nil && h.logger != nil {
			h.logger.Errorf("auth login audit failed: %v", err)
		}
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	sess, err := h.sessionManager.Create(r.Context(), user, clientIP(r, h.cfg), r.UserAgent())
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("auth login session create failed for %s: %v", user.Email, err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if err := h.audits.Append(r.Context(), user.Email, "auth.login_success", ""); err != nil && h.logger != nil {
		h.logger.Errorf("auth login audit failed: %v", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    sess.CSRFToken,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"csrf_token": sess.CSRFToken,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actor := ""
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		sr := v.(*store.SessionRecord)
		_ = h.sessionManager.Destroy(r.Context(), sr.ID)
		if u, err := h.users.Get(r.Context(), sr.UserID); err == nil && u != nil {
			actor = u.Email
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
	if err := h.audits.Append(r.Context(), actor, "auth.logout", ""); err != nil && h.logger != nil {
		h.logger.Errorf("auth logout audit failed: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sr := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	user, err := h.users.Get(r.Context(), sr.UserID)
	if err != nil || user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func clientIP(r *http.Request, cfg *config.AppConfig) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = strings.TrimSpace(r.RemoteAddr)
	}
	if cfg == nil || len(cfg.Security.TrustedProxies) == 0 {
		return ip
	}
	trusted := false
	parsed := net.ParseIP(ip)
	for _, raw := range cfg.Security.TrustedProxies {
		val := strings.TrimSpace(raw)
		if val == "" || parsed == nil {
			continue
		}
		if strings.Contains(val, "/") {
			if _, block, err := net.ParseCIDR(val); err == nil && block.Contains(parsed) {
				trusted = true
				break
			}
			continue
		}
		if parsed.Equal(net.ParseIP(val)) {
			trusted = true
			break
		}
	}
	if !trusted {
		return ip
	}
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if candidate := strings.TrimSpace(parts[0]); candidate != "" {
			if p := net.ParseIP(candidate); p != nil {
				return p.String()
			}
		}
	}
	return ip
}
