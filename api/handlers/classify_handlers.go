package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"relato/core/classify"
	"relato/core/utils"
)

type ClassifyHandler struct {
	classifier classify.Classifier
	logger     *utils.Logger
}

func NewClassifyHandler(classifier classify.Classifier, logger *utils.Logger) *ClassifyHandler {
	return &ClassifyHandler{classifier: classifier, logger: logger}
}

// Suggest returns an advisory classification for a draft incident. It always
// answers 200: when the classifier misbehaves the default suggestion comes
// back instead.
func (h *ClassifyHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		http.Error(w, "title and description are required", http.StatusBadRequest)
		return
	}
	res := classify.Suggest(r.Context(), h.classifier, req.Title, req.Description, h.logger)
	writeJSON(w, http.StatusOK, res)
}
