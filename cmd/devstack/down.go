package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mathesar-foundation/devstack/internal/core/manifest"
	"github.com/mathesar-foundation/devstack/internal/shell/docker"
	"github.com/mathesar-foundation/devstack/internal/shell/store"
)

var flagDownVolumes bool

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the development stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// The manifest is only needed to locate named volumes; a missing file
		// must not prevent tearing containers down.
		var m *manifest.Manifest
		if loaded, err := loadManifest(); err == nil {
			m = loaded
		} else if flagDownVolumes {
			return fmt.Errorf("cannot remove volumes without a readable manifest: %w", err)
		}

		d, err := newDockerClient()
		if err != nil {
			return err
		}
		defer d.Close()

		orch := docker.NewOrchestrator(d, logger)
		if err := orch.Down(ctx, cfg.Project, m, flagDownVolumes); err != nil {
			return err
		}

		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if run, err := s.GetLatestRun(ctx, cfg.Project); err == nil {
			if run.Status == store.RunStatusRunning || run.Status == store.RunStatusStarting {
				if err := s.UpdateRunStatus(ctx, run.ID, store.RunStatusStopped, ""); err != nil {
					logger.Warn("failed to record run status", "error", err)
				}
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("failed to load latest run", "error", err)
		}

		fmt.Printf("Project %q is down\n", cfg.Project)
		return nil
	},
}

func init() {
	downCmd.Flags().BoolVar(&flagDownVolumes, "volumes", false, "also remove named volumes")
	rootCmd.AddCommand(downCmd)
}
