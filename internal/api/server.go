package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flitsinc/schedd/internal/calendar"
	"github.com/flitsinc/schedd/internal/dispatch"
	"github.com/flitsinc/schedd/internal/eventbus"
	"github.com/flitsinc/schedd/internal/prefs"
	"github.com/flitsinc/schedd/internal/runstore"
	"github.com/flitsinc/schedd/internal/schema"
	"github.com/flitsinc/schedd/internal/session"
)

type Server struct {
	Dispatcher   *dispatch.Dispatcher
	Registry     *session.Registry
	Runs         *runstore.Store
	Meetings     *calendar.Recorder
	Prefs        *prefs.Store
	Bus          *eventbus.Bus
	Restart      func() error
	RestartToken string
	StartedAt    time.Time
	Info         DiagnosticsInfo
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/inbound", s.handleInbound)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionItem)
	mux.HandleFunc("/api/runs/", s.handleRunItem)
	mux.HandleFunc("/api/meetings", s.handleMeetings)
	mux.HandleFunc("/api/preferences", s.handlePreferences)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/streams/subscribe", s.handleStreamSubscribe)
	mux.HandleFunc("/api/streams/ws", s.handleStreamWS)
	mux.HandleFunc("/api/streams/", s.handleStreams)
	mux.HandleFunc("/api/admin/restart", s.handleRestart)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

// handleInbound is the chat-platform adapter's entry point: one conversation
// message in, a dispatch classification out.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var msg dispatch.InboundMessage
	if err := decodeJSON(r.Body, &msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	class, err := s.Dispatcher.HandleInbound(r.Context(), msg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"thread":         msg.Thread.Key(),
		"classification": class,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 100)
	items, err := s.Registry.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleSessionItem(w http.ResponseWriter, r *http.Request) {
	thread, ok := threadFromPath(w, r.URL.Path, "/api/sessions/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		rec, err := s.Registry.Get(r.Context(), thread)
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		// Operator escape hatch for a thread stuck RUNNING after a crash
		// mid-run left no checkpoint behind.
		if err := s.Registry.Close(r.Context(), thread); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := s.Runs.Drop(r.Context(), thread); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleRunItem exposes the thread's checkpoint for inspection.
func (s *Server) handleRunItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	thread, ok := threadFromPath(w, r.URL.Path, "/api/runs/")
	if !ok {
		return
	}
	var state map[string]any
	err := s.Runs.Load(r.Context(), thread, &state)
	if errors.Is(err, runstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	updatedAt, _ := s.Runs.UpdatedAt(r.Context(), thread)
	writeJSON(w, http.StatusOK, map[string]any{
		"thread":     thread.Key(),
		"updated_at": updatedAt,
		"state":      state,
	})
}

func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	thread := r.URL.Query().Get("thread")
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	items, err := s.Meetings.List(r.Context(), thread, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		participant := r.URL.Query().Get("participant")
		query := r.URL.Query().Get("q")
		items, err := s.Prefs.Search(r.Context(), participant, query)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var payload struct {
			Participant string `json:"participant"`
			Content     string `json:"content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.Prefs.Upsert(r.Context(), payload.Participant, payload.Content); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var payload struct {
		Stream    string         `json:"stream"`
		ScopeType string         `json:"scope_type"`
		ScopeID   string         `json:"scope_id"`
		Subject   string         `json:"subject"`
		Body      string         `json:"body"`
		Metadata  map[string]any `json:"metadata"`
		Payload   map[string]any `json:"payload"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	evt, err := s.Bus.Push(r.Context(), eventbus.EventInput{
		Stream:    payload.Stream,
		ScopeType: payload.ScopeType,
		ScopeID:   payload.ScopeID,
		Subject:   payload.Subject,
		Body:      payload.Body,
		Metadata:  payload.Metadata,
		Payload:   payload.Payload,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, evt)
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/streams/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errNotFound("stream"))
		return
	}
	stream := segments[0]
	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		limit := parseInt(r.URL.Query().Get("limit"), 50)
		order := r.URL.Query().Get("order")
		reader := r.URL.Query().Get("reader")
		items, err := s.Bus.List(r.Context(), stream, eventbus.ListOptions{
			Limit:  limit,
			Order:  order,
			Reader: reader,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}
	action := segments[1]
	switch action {
	case "read":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var payload struct {
			IDs    []string `json:"ids"`
			Reader string   `json:"reader"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		events, err := s.Bus.Read(r.Context(), stream, payload.IDs, payload.Reader)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	case "ack":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var payload struct {
			IDs    []string `json:"ids"`
			Reader string   `json:"reader"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.Bus.Ack(r.Context(), stream, payload.IDs, payload.Reader); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, errNotFound("stream action"))
	}
}

func (s *Server) handleStreamSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	streamsParam := r.URL.Query().Get("streams")
	if streamsParam == "" {
		streamsParam = schema.StreamOutbound + "," + schema.StreamErrors
	}
	streamList := splitComma(streamsParam)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errNotFound("streaming support"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	_, _ = w.Write([]byte(":ok\n\n"))
	flusher.Flush()

	ctx := r.Context()
	sub := s.Bus.Subscribe(ctx, streamList)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			payload, _ := json.Marshal(evt)
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if s.Restart == nil {
		writeError(w, http.StatusNotImplemented, errNotFound("restart"))
		return
	}
	if token := s.RestartToken; token != "" {
		header := r.Header.Get("X-Restart-Token")
		if header != token {
			writeError(w, http.StatusUnauthorized, errNotFound("invalid restart token"))
			return
		}
	}
	if err := s.Restart(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func threadFromPath(w http.ResponseWriter, path, prefix string) (schema.ThreadID, bool) {
	key := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if key == "" {
		writeError(w, http.StatusNotFound, errNotFound("thread"))
		return schema.ThreadID{}, false
	}
	thread, err := schema.ParseThreadKey(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return schema.ThreadID{}, false
	}
	return thread, true
}

func decodeJSON(body io.Reader, dest any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitComma(value string) []string {
	parts := strings.Split(value, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

type notFoundError struct {
	msg string
}

func (e notFoundError) Error() string { return e.msg }

func errNotFound(target string) error {
	return notFoundError{msg: target + " not found"}
}
