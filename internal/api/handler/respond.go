package handler

import (
	"encoding/json"
	"net/http"

	"github.com/eidos-ontology/eidos/internal/pkg/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
