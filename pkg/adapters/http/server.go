package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/railyard"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed openapi.yaml
var rawSpec []byte

// Chat is the session API served over HTTP.
type Chat interface {
	StartSession(ctx context.Context) (string, error)
	SubmitUserMessage(ctx context.Context, sessionID, text string) (*domain.Reply, error)
	EndSession(ctx context.Context, sessionID string) error
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Reloader streams the results of rail reloads.
type Reloader interface {
	Watch(ctx context.Context) (<-chan error, error)
}

// Server implements the HTTP handlers.
type Server struct {
	Chat     Chat
	Reloader Reloader
	Streams  *StreamManager
	Logger   *slog.Logger

	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithReloader enables GET /events.
func WithReloader(r Reloader) Option {
	return func(s *Server) { s.Reloader = r }
}

// WithMetrics mounts a metrics handler on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.Logger = l }
}

// GetSwagger parses and validates the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates the HTTP handler for chat. Requests to documented
// routes are validated against the embedded OpenAPI document.
func NewHandler(chat Chat, opts ...Option) (http.Handler, error) {
	s := &Server{
		Chat:    chat,
		Streams: NewStreamManager(),
		Logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.Logger

	doc, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi router: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(validateRequests(router, s.Logger))
		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
		r.Get("/events", s.SubscribeReloads)
		r.Post("/sessions", s.StartSession)
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.EndSession)
			r.Post("/messages", s.SubmitUserMessage)
			r.Get("/events", s.SubscribeSession)
		})
	})
	return r, nil
}

func validateRequests(router routers.Router, logger *slog.Logger) func(http.Handler) http.Handler {
	opts := &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, params, err := router.FindRoute(r)
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			err = openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: params,
				Route:      route,
				Options:    opts,
			})
			if err != nil {
				logger.Warn("request rejected by schema", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusBadRequest, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Railyard API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

type messageRequest struct {
	Text string `json:"text"`
}

type sessionCreated struct {
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "railyard-http",
		"version":     strings.TrimSpace(railyard.Version),
		"api_version": apiVersion,
	})
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.Chat.StartSession(r.Context())
	if err != nil {
		s.fail(w, "StartSession", err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionCreated{SessionID: id})
}

// GetSession handles GET /sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Chat.Session(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// EndSession handles DELETE /sessions/{sessionId}.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if err := s.Chat.EndSession(r.Context(), id); err != nil {
		s.fail(w, "EndSession", err)
		return
	}
	s.Streams.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// SubmitUserMessage handles POST /sessions/{sessionId}/messages and
// broadcasts the resulting session diff to subscribers.
func (s *Server) SubmitUserMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var before *domain.Session
	if s.Streams.HasSubscribers(id) {
		before, _ = s.Chat.Session(r.Context(), id)
	}

	reply, err := s.Chat.SubmitUserMessage(r.Context(), id, body.Text)
	if err != nil {
		s.fail(w, "SubmitUserMessage", err)
		return
	}

	if before != nil {
		if after, err := s.Chat.Session(r.Context(), id); err == nil {
			if diff := domain.Diff(before, after); diff != nil {
				if b, err := json.Marshal(diff); err == nil {
					s.Streams.Broadcast(id, string(b))
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "error", err)
	} else {
		s.Logger.Debug(op+" rejected", "error", err, "status", status)
	}
	writeError(w, status, err)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, railyard.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
