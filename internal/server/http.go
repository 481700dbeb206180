package server

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/alfredjeanlab/relay/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *RelayServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /v1/messages", s.handleListMessages)
	mux.HandleFunc("POST /v1/messages", s.handleSubmitMessage)
	mux.HandleFunc("GET /v1/messages/stream", s.handleMessageStream)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return mux
}

// handleHealth handles GET /v1/health.
func (s *RelayServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListSessions handles GET /v1/sessions: the currently attached
// stream sessions, most recent first.
func (s *RelayServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Sessions())
}

// handleListMessages handles GET /v1/messages: the journal snapshot,
// ordered ascending by id.
func (s *RelayServer) handleListMessages(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.journal.Snapshot()
	out := make([]*model.Message, 0, len(snapshot))
	out = append(out, snapshot...)
	writeJSON(w, http.StatusOK, out)
}

type submitRequest struct {
	Text string `json:"text"`
}

// handleSubmitMessage handles POST /v1/messages. The insert goes to
// the store only; the journal picks the row up through the change
// feed, so the caller will observe its own write with feed latency.
func (s *RelayServer) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	text, err := s.readSubmitText(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trimmed, err := model.ValidateText(text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.InsertMessage(r.Context(), trimmed)
	if err != nil {
		s.logger.Error("http: message insert failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	if s.Publisher != nil {
		if err := s.Publisher.Publish(r.Context(), &model.Message{ID: id, Text: trimmed}); err != nil {
			// The row is stored; the feed will recover it on the next
			// journal seed even if this publish is lost.
			s.logger.Warn("http: feed publish failed", "id", id, "err", err)
		}
	}

	s.logger.Debug("http: message accepted", "id", id)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// readSubmitText accepts either a JSON body or an HTML form post.
func (s *RelayServer) readSubmitText(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return "", err
		}
		return r.FormValue("text"), nil
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", err
	}
	return req.Text, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
