package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes returned by Execute.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// configFile is the explicit config file layered after the user and project files.
var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mke2e",
	Short: "End-to-end tests for the Money Keeper web application",
	Long: `mke2e drives the Money Keeper UI through a real browser and checks the
results through its HTTP API. Scenarios are written as Gherkin features;
every entity a scenario creates is tracked and deleted when the scenario ends.

Configuration is layered from ~/.config/mke2e/config.yaml, .mke2e/config.yaml
in the current directory, the file given with --config, environment variables
and command line flags, in that order.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed scenarios, unreachable API)
	SilenceUsage: true,
}

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode maps a command error to the process exit code. Errors that are
// not an ExitError come from cobra itself or from configuration, so they
// count as command errors.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mke2e version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file applied after ~/.config/mke2e and .mke2e (must exist)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (env LOG_LEVEL)")

	rootCmd.AddCommand(newVersionCmd())
}
