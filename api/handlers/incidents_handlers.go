package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"relato/core/auth"
	"relato/core/comments"
	"relato/core/incidents"
	"relato/core/store"
	"relato/core/utils"
)

type IncidentsHandler struct {
	incidents *incidents.Service
	comments  *comments.Service
	logger    *utils.Logger
}

func NewIncidentsHandler(incidentsSvc *incidents.Service, commentsSvc *comments.Service, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{incidents: incidentsSvc, comments: commentsSvc, logger: logger}
}

func principal(r *http.Request) auth.Principal {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		return auth.PrincipalFromSession(v.(*store.SessionRecord))
	}
	return auth.Principal{}
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IncidentFilter{
		State:    strings.ToLower(strings.TrimSpace(q.Get("state"))),
		Priority: strings.ToLower(strings.TrimSpace(q.Get("priority"))),
		Search:   strings.TrimSpace(q.Get("q")),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Offset = parsed
		}
	}
	items, err := h.incidents.List(r.Context(), principal(r), filter)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if items == nil {
		items = []store.Incident{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req incidents.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.incidents.Create(r.Context(), principal(r), req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.incidents.Get(r.Context(), principal(r), id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var req incidents.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.incidents.Update(r.Context(), principal(r), id, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.incidents.Delete(r.Context(), principal(r), id); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *IncidentsHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	items, err := h.comments.List(r.Context(), principal(r), id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if items == nil {
		items = []store.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *IncidentsHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	c, err := h.comments.Append(r.Context(), principal(r), id, req.Body)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
