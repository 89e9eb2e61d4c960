package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathesar-foundation/devstack/internal/core/manifest"
	"github.com/mathesar-foundation/devstack/internal/shell/docker"
	"github.com/mathesar-foundation/devstack/internal/shell/store"
)

// Shared state loaded by the root command before any subcommand runs.
var (
	cfg    *Config
	logger *slog.Logger

	flagConfigPath string
	flagManifest   string
	flagProject    string
)

var rootCmd = &cobra.Command{
	Use:           "devstack",
	Short:         "Manage the local development environment",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := LoadConfig(flagConfigPath)
		if err != nil {
			return err
		}
		if flagManifest != "" {
			loaded.Manifest = flagManifest
		}
		if flagProject != "" {
			loaded.Project = flagProject
		}

		cfg = loaded
		logger = SetupLogger(cfg)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&flagManifest, "manifest", "f", "", "path to the stack manifest")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "project name")
}

// =============================================================================
// Shared Helpers
// =============================================================================

// loadManifest loads and fully resolves the configured manifest.
func loadManifest() (*manifest.Manifest, error) {
	return manifest.Load(cfg.Manifest)
}

// newDockerClient connects to the Docker daemon from config.
func newDockerClient() (*docker.DockerClient, error) {
	return docker.NewDockerClient(cfg.Docker.Host)
}

// newStore opens the run history database from config.
func newStore() (store.Store, error) {
	if dir := dirOf(cfg.Database.DSN); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return store.NewSQLiteStore(cfg.Database.DSN)
}

func dirOf(dsn string) string {
	if dsn == ":memory:" {
		return ""
	}
	idx := strings.LastIndexByte(dsn, '/')
	if idx <= 0 {
		return ""
	}
	return dsn[:idx]
}

// hostVariables exposes the process environment to manifest placeholder
// substitution.
func hostVariables() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}
