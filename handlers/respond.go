package handlers

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.WithError(err).Error("Failed to encode response")
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, status int, message string) {
	writeJSON(w, logger, status, errorResponse{Error: message})
}
