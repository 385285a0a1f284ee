// Package main provides the drl-lsp entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/jarredhawkins/drl-lsp/internal/config"
	"github.com/jarredhawkins/drl-lsp/internal/lsp"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "drl-lsp",
		Short: "Language server for Drools rule files",
		Long: `drl-lsp parses Drools DRL files incrementally and serves diagnostics,
outline, folding and navigation over the Language Server Protocol.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.drl-lsp.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "drl-lsp %s\n", lsp.Version)
		},
	}
}

// loadConfig reads the configuration and sets up logging from it. Logs go
// to stderr or the configured file; stdout belongs to the protocol.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	var logPath *string
	if cfg.Logging.File != "" {
		logPath = &cfg.Logging.File
	}
	commonlog.Configure(cfg.Logging.Verbosity, logPath)

	return cfg, nil
}
