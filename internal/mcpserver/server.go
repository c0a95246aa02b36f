// Package mcpserver exposes the harness to MCP clients over stdio.
//
// Three tools are served: e2e_list_features lists the features and their
// scenarios, e2e_run_suite runs the suite and returns its result, and
// e2e_last_report returns the result of the most recent run.
package mcpserver

import (
	"context"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mke2e/internal/config"
	"mke2e/internal/reporting"
	"mke2e/internal/suite"
	"mke2e/pkg/logging"
)

const serverName = "mke2e"

// RunRequest carries the per-call overrides of e2e_run_suite.
type RunRequest struct {
	Paths       []string
	Tags        string
	Workers     int
	Browserless bool
}

// RunFunc runs the suite with req applied on top of the configuration.
type RunFunc func(ctx context.Context, req RunRequest) (suite.Outcome, error)

// Server serves the harness tools.
type Server struct {
	cfg     config.Config
	run     RunFunc
	logger  *logging.Logger
	version string

	mu         sync.Mutex
	running    bool
	lastResult *reporting.SuiteResult
}

// New creates a Server. run executes e2e_run_suite calls.
func New(cfg config.Config, run RunFunc, version string, logger *logging.Logger) *Server {
	return &Server{cfg: cfg, run: run, version: version, logger: logger.With("MCP")}
}

// Tools returns the tools with their handlers.
func (s *Server) Tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("e2e_list_features",
				mcp.WithDescription("List the feature files and their scenarios"),
				mcp.WithString("path",
					mcp.Description("Feature file or directory, defaults to the configured paths"),
				),
			),
			Handler: s.handleListFeatures,
		},
		{
			Tool: mcp.NewTool("e2e_run_suite",
				mcp.WithDescription("Run the end-to-end suite against the configured Money Keeper instance and return the suite result"),
				mcp.WithString("path",
					mcp.Description("Feature file or directory, defaults to the configured paths"),
				),
				mcp.WithString("tags",
					mcp.Description("Tag expression selecting scenarios, e.g. '@accounts && ~@slow'"),
				),
				mcp.WithNumber("workers",
					mcp.Description("Scenarios run in parallel (1-10)"),
				),
				mcp.WithBoolean("browserless",
					mcp.Description("Only attach API ports; UI steps fail"),
				),
			),
			Handler: s.handleRunSuite,
		},
		{
			Tool: mcp.NewTool("e2e_last_report",
				mcp.WithDescription("Return the result of the most recent run, from this session or the reports directory"),
			),
			Handler: s.handleLastReport,
		},
	}
}

// MCPServer builds the mcp-go server with every tool registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, s.version, server.WithToolCapabilities(true))
	srv.AddTools(s.Tools()...)
	return srv
}

// ServeStdio serves JSON-RPC on in and out until ctx is done or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Serving %d tools over stdio", len(s.Tools()))
	return server.NewStdioServer(s.MCPServer()).Listen(ctx, in, out)
}
