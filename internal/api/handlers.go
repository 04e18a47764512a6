package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
)

// StatusMessage is returned by the liveness endpoint.
const StatusMessage = "Arogya Mitra is running"

// rootHandler reports that the service is up.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": StatusMessage})
}

// healthHandler reports readiness along with the knowledge base size.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records := 0
	if s.opts.Knowledge != nil {
		records = s.opts.Knowledge.Len()
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"knowledge_records": records}))
}

// messageHandler receives the inbound SMS webhook. It acknowledges with 204 as soon as
// the reply has been scheduled.
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.messageHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.messageHandler: failed to parse form", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	if s.opts.Validator != nil {
		url := s.requestURL(r)
		if !s.opts.Validator.ValidateSignature(url, flattenForm(r), r.Header.Get(TwilioSignatureHeader)) {
			slog.Warn("Server.messageHandler: invalid request signature", "url", url)
			writeError(w, http.StatusForbidden, "Invalid request signature")
			return
		}
	}

	from := strings.TrimSpace(r.PostForm.Get("From"))
	if from == "" {
		slog.Warn("Server.messageHandler: missing From field")
		writeError(w, http.StatusBadRequest, "Missing required field: From")
		return
	}
	// An empty Body is a valid message; an absent one is not.
	if _, ok := r.PostForm["Body"]; !ok {
		slog.Warn("Server.messageHandler: missing Body field", "from", from)
		writeError(w, http.StatusBadRequest, "Missing required field: Body")
		return
	}
	body := r.PostForm.Get("Body")
	slog.Info("Server.messageHandler: message received", "from", from, "length", len(body))

	route, err := s.dispatcher.Dispatch(r.Context(), from, body)
	if err != nil {
		slog.Error("Server.messageHandler: dispatch failed", "from", from, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Message could not be scheduled")
		return
	}
	slog.Debug("Server.messageHandler: dispatched", "from", from, "route", route)
	w.WriteHeader(http.StatusNoContent)
}

// requestURL reconstructs the URL Twilio signed.
func (s *Server) requestURL(r *http.Request) string {
	if base := strings.TrimRight(s.opts.PublicBaseURL, "/"); base != "" {
		return base + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// flattenForm keeps the first value of each posted field.
func flattenForm(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
