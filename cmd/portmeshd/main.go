package main

import (
	"log/slog"
	"os"

	"portmesh/internal/config"
	"portmesh/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug bool
	var searchDirs []string
	var graphPath string
	var catalogPath string
	var saveOnExit bool

	cmd := &cobra.Command{
		Use:   "portmeshd",
		Short: "Scan, connect, and run plugin extensions as one dataflow host",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.ResolvedLogLevel()
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runHost(cmd.Context(), hostOptions{
				searchDirs:  searchDirs,
				graphPath:   graphPath,
				catalogPath: catalogPath,
				saveOnExit:  saveOnExit,
				cfg:         cfg,
			})
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringSliceVar(&searchDirs, "search-dir", nil, "Extension search directory (repeatable; overrides config)")
	cmd.Flags().StringVar(&graphPath, "graph", "", "Connection graph file path (overrides config)")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Extension catalog database path (overrides config)")
	cmd.Flags().BoolVar(&saveOnExit, "save-graph", true, "Persist the connection graph after a clean run")
	return cmd
}
