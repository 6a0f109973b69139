// Package main is Kenny's CLI: a thin cobra shell over internal/engine.
// Every subcommand emits exactly one JSON object to stdout -- status,
// error (if any), correlation_id, and a command-specific payload -- and
// exits 1 on error. Command implementations live in the other cmd_*.go
// files in this package; this file only owns the root command, global
// flags and config loading.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kenny/internal/config"
	"kenny/internal/logging"
)

var (
	configPath string
	dbPath     string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kenny",
	Short: "Kenny - a local-first personal data platform",
	Long: `Kenny indexes your personal data (notes, mail, calendar, messages,
files) into a single local SQLite store, fuses keyword and vector search
over it, and plans/executes tool calls against it with explicit
confirmation for anything that mutates state.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "kenny" {
			return nil
		}

		home, _ := os.UserHomeDir()
		if configPath == "" {
			configPath = filepath.Join(home, ".kenny", "config.yaml")
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dbPath != "" {
			loaded.Store.Path = dbPath
		}
		cfg = loaded

		stateDir := filepath.Dir(cfg.Store.Path)
		if err := logging.Initialize(stateDir, cfg.Env, cfg.Logging.Level, cfg.Logging.JSON); err != nil {
			fmt.Fprintf(os.Stderr, "warning: logging init failed: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.kenny/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "override the store path from config")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(hybridSearchCmd)
	rootCmd.AddCommand(ingestEmbeddingsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(executeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
