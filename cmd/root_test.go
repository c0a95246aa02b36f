package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	// Test setting version
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	// Test root command properties
	if rootCmd.Use != "mke2e" {
		t.Errorf("Expected Use to be 'mke2e', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	for _, name := range []string{"config", "log-level"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag --%s", name)
		}
	}
}

func TestVersionTemplate(t *testing.T) {
	// Create a new command to test version template
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}

	// Set the same version template as in Execute()
	testCmd.SetVersionTemplate(`{{printf "mke2e version %s\n" .Version}}`)

	// Capture output
	var buf bytes.Buffer
	testCmd.SetOut(&buf)

	// Execute version command
	testCmd.SetArgs([]string{"--version"})
	err := testCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	expected := "mke2e version 1.0.0\n"
	if output != expected {
		t.Errorf("Expected version output %q, got %q", expected, output)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("2.0.0")
	cmd := newVersionCmd()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	if got := buf.String(); got != "mke2e version 2.0.0\n" {
		t.Errorf("Unexpected version output %q", got)
	}
}

func TestSubcommands(t *testing.T) {
	// Test that subcommands are added
	commands := rootCmd.Commands()

	expectedCommands := []string{"run", "clean", "fake-api", "mcp", "install-browsers", "version"}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestRunFlags(t *testing.T) {
	expectedFlags := []string{
		"browser", "headless", "action-timeout", "trace",
		"base-url", "api-base-url", "reports-dir", "screenshot-on-success",
		"metrics-file", "otel-file", "tags", "format", "workers",
		"timeout", "suite-timeout", "browserless", "live", "verbose",
	}
	for _, name := range expectedFlags {
		if runCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected run flag --%s", name)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitSuccess},
		{name: "scenario failures", err: &ExitError{Code: ExitFailure, Message: "1 of 2 scenarios failed"}, want: ExitFailure},
		{name: "wrapped exit error", err: fmt.Errorf("outer: %w", &ExitError{Code: ExitFailure}), want: ExitFailure},
		{name: "plain error", err: errors.New("unknown flag: --nope"), want: ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")

	err := &ExitError{Code: ExitFailure, Message: "suite run failed", Err: cause}
	if err.Error() != "suite run failed: connection refused" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected ExitError to unwrap to its cause")
	}

	if got := (&ExitError{Err: cause}).Error(); got != "connection refused" {
		t.Errorf("Unexpected message %q", got)
	}
	if got := (&ExitError{Message: "3 of 4 scenarios failed"}).Error(); !strings.Contains(got, "3 of 4") {
		t.Errorf("Unexpected message %q", got)
	}
}
