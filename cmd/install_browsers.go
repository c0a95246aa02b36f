package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mke2e/internal/config"
	"mke2e/internal/session"
)

func newInstallBrowsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install-browsers [engines...]",
		Short: "Download the playwright driver and browser engines",
		Long: `Downloads the playwright driver and the given engines (chromium, firefox,
webkit). Without arguments the configured engine is installed.`,
		ValidArgs: []string{config.EngineChromium, config.EngineFirefox, config.EngineWebKit},
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engines := args
			if len(engines) == 0 {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				engines = []string{session.ResolveEngine(cfg.Browser.Engine)}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installing %v...\n", engines)
			if err := session.InstallBrowsers(engines...); err != nil {
				return &ExitError{Code: ExitFailure, Message: "browser installation failed", Err: err}
			}
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newInstallBrowsersCmd())
}
