package mcpserver

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cbie/core/internal/appinit"
	"github.com/cbie/core/internal/ratelimit"
)

// Server wraps the MCP SDK server and exposes the Correction
// Coordinator's command surface as tools. Grounded on the teacher's
// internal/mcp.Server: same sdk.Server embedding, same stdio Run/signal-
// handling shape, same per-command rate limiting before the handler
// body runs.
type Server struct {
	server *sdk.Server
	app    *appinit.App
	limits ratelimit.CommandLimiters
}

// Config names the MCP server identity; the rest of the collaborator
// graph comes from appinit.App.
type Config struct {
	Name    string
	Version string
}

// NewServer builds a Server over an already-constructed App (see
// internal/appinit). Tools are registered before Run is called.
func NewServer(cfg Config, app *appinit.App) (*Server, error) {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {},
	})

	s := &Server{
		server: mcpServer,
		app:    app,
		limits: ratelimit.NewCommandLimiters(),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("mcpserver: register tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server over stdio transport. It blocks until the
// client disconnects or the context is cancelled, then closes the
// underlying App.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
