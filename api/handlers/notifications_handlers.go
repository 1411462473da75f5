package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"relato/core/notify"
	"relato/core/store"
	"relato/core/utils"
)

type NotificationsHandler struct {
	notify *notify.Service
	logger *utils.Logger
}

func NewNotificationsHandler(notifySvc *notify.Service, logger *utils.Logger) *NotificationsHandler {
	return &NotificationsHandler{notify: notifySvc, logger: logger}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unreadOnly := strings.EqualFold(strings.TrimSpace(q.Get("unread")), "true") || q.Get("unread") == "1"
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	items, err := h.notify.List(r.Context(), principal(r), unreadOnly, limit)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if items == nil {
		items = []store.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID int64  `json:"recipient_id"`
		Kind        string `json:"kind"`
		Title       string `json:"title"`
		Body        string `json:"body"`
		IncidentID  *int64 `json:"incident_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	n, err := h.notify.Create(r.Context(), principal(r), store.Notification{
		RecipientID: req.RecipientID,
		Kind:        strings.ToLower(strings.TrimSpace(req.Kind)),
		Title:       req.Title,
		Body:        req.Body,
		IncidentID:  req.IncidentID,
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, true)
}

func (h *NotificationsHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, false)
}

func (h *NotificationsHandler) setRead(w http.ResponseWriter, r *http.Request, read bool) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.notify.MarkRead(r.Context(), principal(r), id, read); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notify.MarkAllRead(r.Context(), principal(r))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "updated": n})
}

func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.notify.Delete(r.Context(), principal(r), id); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
