package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
)

// encodeFailureBody is sent when a payload cannot be marshaled.
const encodeFailureBody = `{"status":"error","message":"Internal server error"}`

// writeJSONResponse marshals response before touching the headers, so an encoding
// failure can still be reported as a 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		body, statusCode = []byte(encodeFailureBody), http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", err)
	}
}

// writeError sends an error envelope with the given status.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, models.Error(message))
}
