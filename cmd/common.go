package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"mke2e/internal/config"
	"mke2e/pkg/logging"
)

// loadConfig layers the config files, the environment and the changed flags
// of cmd. Any failure is a command error.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return config.Config{}, &ExitError{Code: ExitCommandError, Message: "failed to load configuration", Err: err}
	}
	return cfg, nil
}

// newLogger returns the harness logger writing text records to w.
func newLogger(cfg config.Config, w io.Writer) *logging.Logger {
	return logging.New(w, logging.ParseLevel(cfg.Logging.Level))
}
