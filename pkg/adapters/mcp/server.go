package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/railyard"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// RailsURI is the resource exposing the loaded rails.
const RailsURI = "railyard://rails"

// Chat is the session API exposed as MCP tools.
type Chat interface {
	StartSession(ctx context.Context) (string, error)
	SubmitUserMessage(ctx context.Context, sessionID, text string) (*domain.Reply, error)
	EndSession(ctx context.Context, sessionID string) error
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Rails() *domain.Rails
}

// SessionResponse identifies a session.
type SessionResponse struct {
	SessionID string `json:"session_id" jsonschema_description:"The session identifier"`
	Ended     bool   `json:"ended,omitempty" jsonschema_description:"True when the session was discarded"`
}

// ReplyResponse aligns with the HTTP reply schema.
type ReplyResponse struct {
	SessionID string                 `json:"session_id" jsonschema_description:"The session identifier"`
	Status    string                 `json:"status" jsonschema_description:"Dialog state after the turn"`
	Messages  []string               `json:"messages" jsonschema_description:"Bot messages, ending with the rejection message when a rail stopped the turn"`
	Intent    string                 `json:"intent,omitempty" jsonschema_description:"Canonical intent of the user message"`
	Flow      string                 `json:"flow,omitempty" jsonschema_description:"Flow that handled the turn"`
	Rejection *domain.GuardRejection `json:"rejection,omitempty" jsonschema_description:"Set when a rail stopped the turn"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type messageArgs struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	chat      Chat
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(chat Chat, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		chat:      chat,
		mcpServer: server.NewMCPServer("railyard-mcp", strings.TrimSpace(railyard.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a new guarded conversation and return its session ID."),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleStartSession))

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to a session. The reply is either the bot messages or a rail rejection."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session returned by start_session")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user message")),
		mcp.WithOutputSchema[ReplyResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("Discard a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to end")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleEndSession))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Inspect the state, context and history of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to inspect")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args sessionArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		sess, err := s.chat.Session(ctx, args.SessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		b, _ := json.Marshal(sess)
		return mcp.NewToolResultText(string(b)), nil
	})
}

func (s *Server) handleStartSession(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (SessionResponse, error) {
	id, err := s.chat.StartSession(ctx)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("start session failed: %w", err)
	}
	return SessionResponse{SessionID: id}, nil
}

func (s *Server) handleSendMessage(ctx context.Context, _ mcp.CallToolRequest, args messageArgs) (ReplyResponse, error) {
	reply, err := s.chat.SubmitUserMessage(ctx, args.SessionID, args.Text)
	if err != nil {
		s.logger.Warn("MCP send_message failed", "session_id", args.SessionID, "error", err)
		return ReplyResponse{}, fmt.Errorf("send message failed: %w", err)
	}
	return toReply(reply), nil
}

func (s *Server) handleEndSession(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (SessionResponse, error) {
	if err := s.chat.EndSession(ctx, args.SessionID); err != nil {
		return SessionResponse{}, fmt.Errorf("end session failed: %w", err)
	}
	return SessionResponse{SessionID: args.SessionID, Ended: true}, nil
}

func toReply(r *domain.Reply) ReplyResponse {
	out := ReplyResponse{
		SessionID: r.SessionID,
		Status:    string(r.Status),
		Rejection: r.Rejection,
	}
	switch {
	case r.Rejection != nil:
		out.Messages = r.Rejection.Output()
	case r.Response != nil:
		out.Messages = r.Response.Messages
		out.Intent = r.Response.Intent
		out.Flow = r.Response.Flow
	}
	return out
}

// railsSummary is the public shape of the loaded rails.
type railsSummary struct {
	Source  string              `json:"source,omitempty"`
	Intents map[string][]string `json:"intents"`
	Flows   []string            `json:"flows"`
	Guards  map[string][]string `json:"checkpoints"`
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(RailsURI, "Loaded rails",
		mcp.WithResourceDescription("Canonical intents, flows and checkpoint guards in effect."),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		r := s.chat.Rails()
		sum := railsSummary{
			Source:  r.Source,
			Intents: make(map[string][]string, len(r.Intents)),
			Guards:  make(map[string][]string, len(r.Checkpoints)),
		}
		for _, in := range r.Intents {
			sum.Intents[in.Label] = in.Examples
		}
		for _, f := range r.Flows {
			sum.Flows = append(sum.Flows, f.Name)
		}
		for cp, names := range r.Checkpoints {
			sum.Guards[string(cp)] = names
		}
		b, err := json.Marshal(sum)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      RailsURI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	})
}
