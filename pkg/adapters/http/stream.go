package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
		logger:      slog.New(slog.DiscardHandler),
	}
}

// Subscribe registers a listener for sessionID. The returned channel is
// closed by cancel or when the session ends.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, live := subs[ch]; !live {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// HasSubscribers reports whether anyone listens to sessionID.
func (sm *StreamManager) HasSubscribers(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID]) > 0
}

// Broadcast sends msg to every listener of sessionID. Slow listeners miss it.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Close ends every stream of sessionID.
func (sm *StreamManager) Close(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers[sessionID] {
		close(ch)
	}
	delete(sm.subscribers, sessionID)
}

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	return flusher, true
}

// SubscribeSession handles GET /sessions/{sessionId}/events. Each event is a
// JSON session diff; the watch parameter keeps only diffs touching the listed
// fields (status, flow, context, history).
func (s *Server) SubscribeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if _, err := s.Chat.Session(r.Context(), id); err != nil {
		s.fail(w, "SubscribeSession", err)
		return
	}

	var watchList []string
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, f := range strings.Split(v, ",") {
			watchList = append(watchList, strings.TrimSpace(f))
		}
	}

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	flusher, ok := startStream(w)
	if !ok {
		return
	}
	s.Logger.Info("SSE: subscribed to session", "session_id", id)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				fmt.Fprintf(w, "event: end\ndata: %s\n\n", id)
				flusher.Flush()
				return
			}
			if len(watchList) > 0 && !watched(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func watched(msg string, fields []string) bool {
	var diff domain.SessionDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range fields {
		switch field {
		case "status":
			if diff.Status != nil {
				return true
			}
		case "flow":
			if diff.ActiveFlow != nil {
				return true
			}
		case "context":
			if len(diff.Context) > 0 {
				return true
			}
		case "history":
			if len(diff.History) > 0 {
				return true
			}
		}
	}
	return false
}

type reloadEvent struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SubscribeReloads handles GET /events, streaming one event per rail reload.
func (s *Server) SubscribeReloads(w http.ResponseWriter, r *http.Request) {
	if s.Reloader == nil {
		writeError(w, http.StatusNotFound, errors.New("hot reload is not enabled"))
		return
	}
	events, err := s.Reloader.Watch(r.Context())
	if err != nil {
		s.fail(w, "SubscribeReloads", err)
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case err, ok := <-events:
			if !ok {
				return
			}
			ev := reloadEvent{OK: err == nil}
			if err != nil {
				ev.Error = err.Error()
			}
			b, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", b)
			flusher.Flush()
		}
	}
}
