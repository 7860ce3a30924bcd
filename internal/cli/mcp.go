package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/railyard/pkg/adapters/mcp"
)

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Options
	// Transport is "stdio" or "sse".
	Transport string
	// Addr and BaseURL apply to the SSE transport.
	Addr    string
	BaseURL string

	Stderr io.Writer
}

// RunMCP exposes the session API as MCP tools. Logs go to Stderr so they
// never corrupt JSON-RPC on Stdout.
func RunMCP(ctx context.Context, opts MCPOptions) error {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	logger, err := createLogger(opts.Options, opts.Stderr)
	if err != nil {
		return err
	}
	eng, err := createEngine(opts.Options, logger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := mcp.NewServer(eng, logger)
	switch opts.Transport {
	case "", "stdio":
		logger.Info("MCP server listening (stdio)", "rails", eng.Name)
		return srv.ServeStdio()
	case "sse":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost" + opts.Addr
		}
		return srv.ServeSSE(ctx, opts.Addr, baseURL)
	}
	return fmt.Errorf("unknown transport %q: supported are stdio and sse", opts.Transport)
}
