package handlers

import (
	"encoding/json"
	"net/http"

	"relato/core/accounts"
	"relato/core/store"
	"relato/core/utils"
)

type UsersHandler struct {
	accounts *accounts.Service
	logger   *utils.Logger
}

func NewUsersHandler(accountsSvc *accounts.Service, logger *utils.Logger) *UsersHandler {
	return &UsersHandler{accounts: accountsSvc, logger: logger}
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.accounts.List(r.Context(), principal(r))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if items == nil {
		items = []store.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.accounts.Get(r.Context(), principal(r), id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UsersHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.accounts.SetRole(r.Context(), principal(r), id, req.Role); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.accounts.Delete(r.Context(), principal(r), id); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
