package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mke2e/internal/config"
	"mke2e/internal/mcpserver"
	"mke2e/internal/suite"
	"mke2e/pkg/logging"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the harness as an MCP server over stdio",
	Long: `Runs an MCP server on stdin and stdout so AI assistants can list the
features, run the suite and read the last report.

Tools:
  e2e_list_features  List feature files and their scenarios
  e2e_run_suite      Run the suite, optionally filtered by path and tags
  e2e_last_report    Return the most recent suite result

Logs go to stderr. Configure it in your assistant's MCP settings, e.g.:
  {"command": "mke2e", "args": ["mcp", "--config", "e2e.yaml"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol
	logger := newLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcpserver.New(cfg, suiteRunFunc(cfg, logger), rootCmd.Version, logger)
	return server.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// suiteRunFunc runs the suite for an MCP call, with the call's overrides
// applied to a copy of cfg.
func suiteRunFunc(cfg config.Config, logger *logging.Logger) mcpserver.RunFunc {
	return func(ctx context.Context, req mcpserver.RunRequest) (suite.Outcome, error) {
		runCfg := applyRunRequest(cfg, req)
		if err := runCfg.Validate(); err != nil {
			return suite.Outcome{}, err
		}
		return suite.New(suite.Options{
			Config:      runCfg,
			Logger:      logger,
			Browserless: req.Browserless,
		}).Run(ctx)
	}
}

func applyRunRequest(cfg config.Config, req mcpserver.RunRequest) config.Config {
	out := cfg
	if len(req.Paths) > 0 {
		out.Run.Paths = append([]string(nil), req.Paths...)
	}
	if req.Tags != "" {
		out.Run.Tags = req.Tags
	}
	if req.Workers > 0 {
		out.Run.Workers = req.Workers
	}
	// godog's formatter would write into the protocol stream
	out.Run.Format = "none"
	return out
}
