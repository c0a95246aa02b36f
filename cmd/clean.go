package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mke2e/internal/cleanup"
	"mke2e/internal/config"
	"mke2e/internal/ports"
	"mke2e/internal/tracker"
	"mke2e/internal/world"
	"mke2e/pkg/logging"
)

var (
	cleanPrefixes []string
	cleanAll      bool
	cleanDryRun   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete leftover test data through the API",
	Long: `Deletes accounts and categories whose names start with one of the given
prefixes, or every account and category with --all. Nested categories are
deleted before their parents.

Prefixes default to cleanup.sweepPrefixes from the configuration.

Example usage:
  mke2e clean --prefix Food_ --prefix Savings_
  mke2e clean --all --api-base-url http://localhost:8080/api
  mke2e clean --all --dry-run`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringArrayVar(&cleanPrefixes, "prefix", nil, "Delete entities whose name starts with this prefix (repeatable)")
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Delete every account and category")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "List what would be deleted without deleting")
	cleanCmd.Flags().String("api-base-url", config.DefaultAPIBaseURL, "Money Keeper API URL (env API_BASE_URL)")

	cleanCmd.MarkFlagsMutuallyExclusive("prefix", "all")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	prefixes := cleanPrefixes
	if len(prefixes) == 0 {
		prefixes = cfg.Cleanup.SweepPrefixes
	}
	if !cleanAll && len(prefixes) == 0 {
		return &ExitError{Code: ExitCommandError, Message: "nothing to clean: pass --prefix, --all or set cleanup.sweepPrefixes"}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg, cmd.ErrOrStderr())
	client := world.NewAPIClient(cfg, logger)
	apis := map[tracker.Kind]ports.EntityAPI{
		tracker.KindAccount:  client.Accounts(),
		tracker.KindCategory: client.Categories(),
	}
	return sweep(ctx, cmd.OutOrStdout(), apis, prefixMatcher(prefixes, cleanAll), cfg.Run.Workers, logger)
}

// prefixMatcher selects names starting with any of prefixes, or every name
// when all is set.
func prefixMatcher(prefixes []string, all bool) func(tracker.Kind, string) bool {
	return func(_ tracker.Kind, name string) bool {
		if all {
			return true
		}
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	}
}

func sweep(ctx context.Context, out io.Writer, apis map[tracker.Kind]ports.EntityAPI, match func(tracker.Kind, string) bool, workers int, logger *logging.Logger) error {
	if cleanDryRun {
		return listMatches(ctx, out, apis, match)
	}

	report := cleanup.New(apis, cleanup.Options{
		Concurrency: max(workers, 1) * 4,
		Logger:      logger,
	}).Sweep(ctx, match)

	fmt.Fprintf(out, "Deleted %d of %d entities\n", report.Deleted, report.Attempted)
	if report.OK() {
		return nil
	}
	for _, line := range report.Errors() {
		fmt.Fprintf(out, "  %s\n", line)
	}
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d deletions failed", len(report.Failed)), Err: report.ResolveErr}
}

func listMatches(ctx context.Context, out io.Writer, apis map[tracker.Kind]ports.EntityAPI, match func(tracker.Kind, string) bool) error {
	for _, kind := range []tracker.Kind{tracker.KindAccount, tracker.KindCategory} {
		api, ok := apis[kind]
		if !ok {
			continue
		}
		listed, err := api.List(ctx)
		if err != nil {
			return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("failed to list %s entities", kind), Err: err}
		}
		for _, e := range listed {
			if match(kind, e.Name) {
				fmt.Fprintf(out, "%s %s (%s)\n", kind, e.Name, e.ID)
			}
		}
	}
	return nil
}
