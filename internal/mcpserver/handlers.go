package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mke2e/internal/reporting"
)

// handleListFeatures handles the e2e_list_features MCP tool
func (s *Server) handleListFeatures(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	paths := s.cfg.Run.Paths
	if path, ok := args["path"].(string); ok && path != "" {
		paths = []string{path}
	}

	features, err := LoadFeatures(paths)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load features: %v", err)), nil
	}
	if len(features) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No features found in %v", paths)), nil
	}

	jsonData, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format features: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleRunSuite handles the e2e_run_suite MCP tool
func (s *Server) handleRunSuite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var req RunRequest
	if path, ok := args["path"].(string); ok && path != "" {
		req.Paths = []string{path}
	}
	if tags, ok := args["tags"].(string); ok {
		req.Tags = tags
	}
	if workers, ok := args["workers"].(float64); ok {
		if workers < 1 || workers > 10 {
			return mcp.NewToolResultError("workers must be between 1 and 10"), nil
		}
		req.Workers = int(workers)
	}
	if browserless, ok := args["browserless"].(bool); ok {
		req.Browserless = browserless
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return mcp.NewToolResultError("A suite run is already in progress"), nil
	}
	s.running = true
	s.mu.Unlock()

	outcome, err := s.run(ctx, req)

	s.mu.Lock()
	s.running = false
	if err == nil {
		result := outcome.Suite
		s.lastResult = &result
	}
	s.mu.Unlock()

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Suite execution failed: %v", err)), nil
	}
	s.logger.Info("Suite run %s finished: %d passed, %d failed", outcome.Suite.RunID, outcome.Suite.Passed, outcome.Suite.Failed)

	jsonData, err := json.MarshalIndent(outcome.Suite, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format suite result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleLastReport handles the e2e_last_report MCP tool
func (s *Server) handleLastReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	last := s.lastResult
	s.mu.Unlock()

	if last == nil {
		path, err := reporting.LatestReport(s.cfg.Artifacts.ReportsDir)
		if err != nil {
			return mcp.NewToolResultText("No suite results available. Run e2e_run_suite first."), nil
		}
		result, err := reporting.ReadSuiteResult(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		last = &result
	}

	jsonData, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format suite result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
